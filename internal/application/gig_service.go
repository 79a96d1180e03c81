package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

// PaymentRequest describes the funds to place on hold when a worker accepts
// a gig.
type PaymentRequest struct {
	GigID       string
	BuyerID     string
	Title       string
	AmountPence int64
}

// PaymentHold is the gateway's record of held funds. Reference is what later
// capture and release calls are keyed on.
type PaymentHold struct {
	Reference   string
	RedirectURL string
}

// PaymentGateway places, captures, and releases holds on buyer funds.
type PaymentGateway interface {
	Hold(ctx context.Context, req PaymentRequest) (PaymentHold, error)
	Capture(ctx context.Context, reference string) error
	Release(ctx context.Context, reference string) error
}

// GigCatalog captures the persistence interactions needed by the gig service.
type GigCatalog interface {
	CreateGig(ctx context.Context, gig persistence.Gig) error
	UpdateGig(ctx context.Context, gig persistence.Gig) error
	GetGig(ctx context.Context, id string) (persistence.Gig, error)
	ListGigs(ctx context.Context, filter persistence.GigFilter) ([]persistence.Gig, error)
}

// GigService manages the gig lifecycle from offer through settlement.
type GigService struct {
	gigs        GigCatalog
	users       UserDirectory
	payments    PaymentGateway
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewGigService wires dependencies for gig operations.
func NewGigService(gigs GigCatalog, users UserDirectory, payments PaymentGateway, logger *slog.Logger, idGenerator func() string, now func() time.Time) *GigService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &GigService{
		gigs:        gigs,
		users:       users,
		payments:    payments,
		logger:      defaultLogger(logger),
		idGenerator: idGenerator,
		now:         now,
	}
}

// CreateGig validates and stores a buyer's offer. The gig starts in the
// offered state; no money moves until the worker accepts.
func (s *GigService) CreateGig(ctx context.Context, params CreateGigParams) (Gig, error) {
	if s == nil {
		return Gig{}, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return Gig{}, fmt.Errorf("gig repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "gig", "create", "worker_id", params.Input.WorkerID)

	principal := params.Principal
	if principal.UserID == "" {
		return Gig{}, ErrUnauthorized
	}
	if principal.Role != RoleBuyer && !principal.IsAdmin {
		return Gig{}, ErrUnauthorized
	}

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
	}
	if input.AmountPence <= 0 {
		vErr.add("amount_pence", "amount must be positive")
	}
	if input.WorkerID == "" {
		vErr.add("worker_id", "worker_id is required")
	} else if input.WorkerID == principal.UserID {
		vErr.add("worker_id", "buyers cannot hire themselves")
	}
	if vErr.HasErrors() {
		return Gig{}, vErr
	}

	if err := s.ensureWorker(ctx, input.WorkerID); err != nil {
		return Gig{}, err
	}

	createdAt := s.now()
	gig := Gig{
		ID:          s.idGenerator(),
		BuyerID:     principal.UserID,
		WorkerID:    input.WorkerID,
		Title:       strings.TrimSpace(input.Title),
		Start:       input.Start,
		End:         input.End,
		Status:      GigStatusOffered,
		AmountPence: input.AmountPence,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if err := s.gigs.CreateGig(ctx, gigRecord(gig)); err != nil {
		return Gig{}, mapGigRepoError(err)
	}

	logger.InfoContext(ctx, "gig offered", "gig_id", gig.ID)
	return gig, nil
}

// AcceptGig transitions an offered gig to accepted. Accepting places a hold
// on the buyer's funds; the hold reference travels with the gig until capture
// or release.
func (s *GigService) AcceptGig(ctx context.Context, principal Principal, gigID string) (Gig, error) {
	if s == nil {
		return Gig{}, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return Gig{}, fmt.Errorf("gig repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "gig", "accept", "gig_id", gigID)

	gig, err := s.loadGig(ctx, gigID)
	if err != nil {
		return Gig{}, err
	}
	if gig.WorkerID != principal.UserID && !principal.IsAdmin {
		return Gig{}, ErrUnauthorized
	}
	if gig.Status != GigStatusOffered {
		return Gig{}, fmt.Errorf("gig %s is %s: %w", gigID, gig.Status, ErrInvalidState)
	}

	if s.payments != nil {
		hold, err := s.payments.Hold(ctx, PaymentRequest{
			GigID:       gig.ID,
			BuyerID:     gig.BuyerID,
			Title:       gig.Title,
			AmountPence: gig.AmountPence,
		})
		if err != nil {
			logger.ErrorContext(ctx, "payment hold failed", "error", err)
			return Gig{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		gig.PaymentRef = &hold.Reference
	}

	gig.Status = GigStatusAccepted
	gig.UpdatedAt = s.now()

	if err := s.gigs.UpdateGig(ctx, gigRecord(gig)); err != nil {
		return Gig{}, mapGigRepoError(err)
	}

	logger.InfoContext(ctx, "gig accepted")
	return gig, nil
}

// CompleteGig transitions an accepted gig to completed and captures the held
// funds.
func (s *GigService) CompleteGig(ctx context.Context, principal Principal, gigID string) (Gig, error) {
	if s == nil {
		return Gig{}, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return Gig{}, fmt.Errorf("gig repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "gig", "complete", "gig_id", gigID)

	gig, err := s.loadGig(ctx, gigID)
	if err != nil {
		return Gig{}, err
	}
	if gig.BuyerID != principal.UserID && !principal.IsAdmin {
		return Gig{}, ErrUnauthorized
	}
	if gig.Status != GigStatusAccepted {
		return Gig{}, fmt.Errorf("gig %s is %s: %w", gigID, gig.Status, ErrInvalidState)
	}

	if s.payments != nil && gig.PaymentRef != nil {
		if err := s.payments.Capture(ctx, *gig.PaymentRef); err != nil {
			logger.ErrorContext(ctx, "payment capture failed", "error", err)
			return Gig{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
	}

	gig.Status = GigStatusCompleted
	gig.UpdatedAt = s.now()

	if err := s.gigs.UpdateGig(ctx, gigRecord(gig)); err != nil {
		return Gig{}, mapGigRepoError(err)
	}

	logger.InfoContext(ctx, "gig completed")
	return gig, nil
}

// CancelGig withdraws an offered or accepted gig. Holds placed on acceptance
// are released back to the buyer.
func (s *GigService) CancelGig(ctx context.Context, principal Principal, gigID string) (Gig, error) {
	if s == nil {
		return Gig{}, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return Gig{}, fmt.Errorf("gig repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "gig", "cancel", "gig_id", gigID)

	gig, err := s.loadGig(ctx, gigID)
	if err != nil {
		return Gig{}, err
	}
	if gig.BuyerID != principal.UserID && gig.WorkerID != principal.UserID && !principal.IsAdmin {
		return Gig{}, ErrUnauthorized
	}
	if gig.Status != GigStatusOffered && gig.Status != GigStatusAccepted {
		return Gig{}, fmt.Errorf("gig %s is %s: %w", gigID, gig.Status, ErrInvalidState)
	}

	if s.payments != nil && gig.PaymentRef != nil {
		if err := s.payments.Release(ctx, *gig.PaymentRef); err != nil {
			logger.ErrorContext(ctx, "payment release failed", "error", err)
			return Gig{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
	}

	gig.Status = GigStatusCancelled
	gig.UpdatedAt = s.now()

	if err := s.gigs.UpdateGig(ctx, gigRecord(gig)); err != nil {
		return Gig{}, mapGigRepoError(err)
	}

	logger.InfoContext(ctx, "gig cancelled")
	return gig, nil
}

// GetGig returns a single gig visible to the principal.
func (s *GigService) GetGig(ctx context.Context, principal Principal, gigID string) (Gig, error) {
	if s == nil {
		return Gig{}, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return Gig{}, fmt.Errorf("gig repository not configured")
	}

	gig, err := s.loadGig(ctx, gigID)
	if err != nil {
		return Gig{}, err
	}
	if gig.BuyerID != principal.UserID && gig.WorkerID != principal.UserID && !principal.IsAdmin {
		return Gig{}, ErrUnauthorized
	}
	return gig, nil
}

// ListGigs enumerates gigs the principal is party to, optionally narrowed by
// status and time window.
func (s *GigService) ListGigs(ctx context.Context, params ListGigsParams) ([]Gig, error) {
	if s == nil {
		return nil, fmt.Errorf("GigService is nil")
	}
	if s.gigs == nil {
		return nil, fmt.Errorf("gig repository not configured")
	}

	principal := params.Principal
	if principal.UserID == "" && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	filter := persistence.GigFilter{
		WorkerID:    params.WorkerID,
		BuyerID:     params.BuyerID,
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	}
	for _, status := range params.Statuses {
		filter.Statuses = append(filter.Statuses, string(status))
	}

	// Non-admins only ever see their own side of the marketplace.
	if !principal.IsAdmin && filter.WorkerID != principal.UserID && filter.BuyerID != principal.UserID {
		switch principal.Role {
		case RoleWorker:
			filter.WorkerID = principal.UserID
		default:
			filter.BuyerID = principal.UserID
		}
	}

	records, err := s.gigs.ListGigs(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapGigRepoError(err)
	}

	gigs := make([]Gig, 0, len(records))
	for _, record := range records {
		gigs = append(gigs, gigFromRecord(record))
	}
	return gigs, nil
}

func (s *GigService) ensureWorker(ctx context.Context, workerID string) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetUser(ctx, workerID)
	if err != nil {
		if isNotFoundError(err) {
			vErr := &ValidationError{}
			vErr.add("worker_id", "worker does not exist")
			return vErr
		}
		return err
	}
	if user.Role != string(RoleWorker) {
		vErr := &ValidationError{}
		vErr.add("worker_id", "user is not a worker")
		return vErr
	}
	return nil
}

func (s *GigService) loadGig(ctx context.Context, gigID string) (Gig, error) {
	record, err := s.gigs.GetGig(ctx, gigID)
	if err != nil {
		return Gig{}, mapGigRepoError(err)
	}
	return gigFromRecord(record), nil
}

func gigRecord(gig Gig) persistence.Gig {
	return persistence.Gig{
		ID:          gig.ID,
		BuyerID:     gig.BuyerID,
		WorkerID:    gig.WorkerID,
		Title:       gig.Title,
		Start:       gig.Start,
		End:         gig.End,
		Status:      string(gig.Status),
		AmountPence: gig.AmountPence,
		PaymentRef:  gig.PaymentRef,
		CreatedAt:   gig.CreatedAt,
		UpdatedAt:   gig.UpdatedAt,
	}
}

func gigFromRecord(record persistence.Gig) Gig {
	return Gig{
		ID:          record.ID,
		BuyerID:     record.BuyerID,
		WorkerID:    record.WorkerID,
		Title:       record.Title,
		Start:       record.Start,
		End:         record.End,
		Status:      GigStatus(record.Status),
		AmountPence: record.AmountPence,
		PaymentRef:  record.PaymentRef,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapGigRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("status", "gig state is invalid")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("worker_id", "related records are missing")
		return vErr
	}
	return err
}
