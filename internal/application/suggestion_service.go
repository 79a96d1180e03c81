package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TextGenerator produces a short piece of text from a prompt. Implemented by
// the AI client; a nil generator disables suggestions entirely.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// SuggestionService drafts reply suggestions for buyer and worker chats.
// Suggestions are best effort: when the generator is unavailable or fails,
// the service returns an empty suggestion rather than an error so chat is
// never blocked on the AI backend.
type SuggestionService struct {
	generator TextGenerator
	logger    *slog.Logger
}

// NewSuggestionService wires dependencies for suggestion operations.
func NewSuggestionService(generator TextGenerator, logger *slog.Logger) *SuggestionService {
	return &SuggestionService{generator: generator, logger: defaultLogger(logger)}
}

// SuggestReply drafts a reply to the last message of a conversation
// transcript.
func (s *SuggestionService) SuggestReply(ctx context.Context, principal Principal, messages []Message) (string, error) {
	if s == nil {
		return "", fmt.Errorf("SuggestionService is nil")
	}
	if principal.UserID == "" && !principal.IsAdmin {
		return "", ErrUnauthorized
	}

	if len(messages) == 0 {
		vErr := &ValidationError{}
		vErr.add("messages", "at least one message is required")
		return "", vErr
	}

	logger := serviceLogger(ctx, s.logger, "suggestion", "suggest_reply", "messages", len(messages))

	if s.generator == nil {
		return "", nil
	}

	suggestion, err := s.generator.GenerateText(ctx, buildReplyPrompt(messages))
	if err != nil {
		logger.WarnContext(ctx, "suggestion generation failed, returning empty", "error", err)
		return "", nil
	}

	return strings.TrimSpace(suggestion), nil
}

func buildReplyPrompt(messages []Message) string {
	var builder strings.Builder
	builder.WriteString("Draft a short, polite reply to the last message in this gig marketplace conversation.\n\n")
	for _, message := range messages {
		role := strings.TrimSpace(message.Role)
		if role == "" {
			role = "participant"
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(message.Text))
		builder.WriteString("\n")
	}
	builder.WriteString("\nReply:")
	return builder.String()
}
