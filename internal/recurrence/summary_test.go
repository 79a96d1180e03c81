package recurrence

import (
	"strings"
	"testing"
	"time"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{
			name: "single occurrence",
			rule: Rule{Frequency: FrequencyNever, EndDate: "2025-06-15", StartTime: "09:00", EndTime: "17:00", CreatedAt: created},
			want: "Single occurrence on Sunday, 15 June 2025",
		},
		{
			name: "single occurrence with missing date",
			rule: Rule{Frequency: FrequencyNever, StartTime: "09:00", EndTime: "17:00"},
			want: "Single occurrence",
		},
		{
			name: "weekly until date",
			rule: Rule{Frequency: FrequencyWeekly, Days: []string{"wednesday", "monday", "friday"}, Ends: EndsOnDate, EndDate: "2025-03-12"},
			want: "Repeats Mon-Wed-Fri every week until 12 Mar 2025",
		},
		{
			name: "biweekly counted",
			rule: Rule{Frequency: FrequencyBiweekly, Days: []string{"saturday", "sunday"}, Ends: EndsAfterOccurrences, Occurrences: 3},
			want: "Repeats Sat-Sun every 2 weeks (3 times)",
		},
		{
			name: "monthly open ended",
			rule: Rule{Frequency: FrequencyMonthly, Days: []string{"tuesday"}, Ends: EndsNever},
			want: "Repeats Tue every month",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Describe(tc.rule); got != tc.want {
				t.Errorf("Describe() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDescribeMachine_RRule(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Frequency:   FrequencyBiweekly,
		Days:        []string{"monday", "friday"},
		Ends:        EndsAfterOccurrences,
		Occurrences: 5,
	}

	got := DescribeMachine(rule).RRule()
	for _, fragment := range []string{"FREQ=WEEKLY", "INTERVAL=2", "BYDAY=MO,FR", "COUNT=5"} {
		if !strings.Contains(got, fragment) {
			t.Errorf("RRule() = %q, missing %q", got, fragment)
		}
	}

	if got := DescribeMachine(Rule{Frequency: FrequencyNever, EndDate: "2025-06-15"}).RRule(); got != "" {
		t.Errorf("one-off rules should have no RRULE, got %q", got)
	}
}

func TestDescribeMachine_RRuleUntilCoversTerminationDay(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Frequency: FrequencyWeekly,
		Days:      []string{"friday"},
		Ends:      EndsOnDate,
		EndDate:   "2025-06-20",
	}

	got := DescribeMachine(rule).RRule()
	if !strings.Contains(got, "UNTIL=20250620T235959Z") {
		t.Errorf("RRule() = %q, want end-of-day bound on the termination date", got)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    Clock
		wantErr bool
	}{
		{value: "09:30", want: Clock{Hour: 9, Minute: 30}},
		{value: "23:59", want: Clock{Hour: 23, Minute: 59}},
		{value: "00:00", want: Clock{}},
		{value: "9am", wantErr: true},
		{value: "24:00", wantErr: true},
		{value: "12:60", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.value, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClock(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseClock(%q) = %+v, want %+v", tc.value, got, tc.want)
			}
		})
	}
}
