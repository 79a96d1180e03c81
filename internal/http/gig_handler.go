package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/able-marketplace/internal/application"
)

type gigService interface {
	CreateGig(ctx context.Context, params application.CreateGigParams) (application.Gig, error)
	AcceptGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	CompleteGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	CancelGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	GetGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	ListGigs(ctx context.Context, params application.ListGigsParams) ([]application.Gig, error)
}

type GigHandler struct {
	service   gigService
	responder responder
}

func NewGigHandler(service gigService, logger *slog.Logger) *GigHandler {
	return &GigHandler{service: service, responder: newResponder(logger)}
}

func (h *GigHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req gigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	gig, err := h.service.CreateGig(r.Context(), application.CreateGigParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, gigResponse{Gig: toGigDTO(gig)})
}

func (h *GigHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	gigID, ok := GigIDFromContext(r.Context())
	if !ok || strings.TrimSpace(gigID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGigID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	gig, err := h.service.GetGig(r.Context(), principal, gigID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, gigResponse{Gig: toGigDTO(gig)})
}

func (h *GigHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildListGigsParams(r.URL.Query(), principal)

	gigs, err := h.service.ListGigs(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listGigsResponse{Gigs: toGigDTOs(gigs)})
}

// Accept transitions an offered gig into the accepted state, placing a
// payment hold on the buyer's behalf.
func (h *GigHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept")
}

func (h *GigHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete")
}

func (h *GigHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel")
}

func (h *GigHandler) transition(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	gigID, ok := GigIDFromContext(r.Context())
	if !ok || strings.TrimSpace(gigID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGigID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var (
		gig application.Gig
		err error
	)
	switch action {
	case "accept":
		gig, err = h.service.AcceptGig(r.Context(), principal, gigID)
	case "complete":
		gig, err = h.service.CompleteGig(r.Context(), principal, gigID)
	case "cancel":
		gig, err = h.service.CancelGig(r.Context(), principal, gigID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, gigResponse{Gig: toGigDTO(gig)})
}

type gigRequest struct {
	WorkerID    string `json:"worker_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	AmountPence int64  `json:"amount_pence" validate:"gt=0"`
}

func (r gigRequest) toInput() application.GigInput {
	return application.GigInput{
		WorkerID:    strings.TrimSpace(r.WorkerID),
		Title:       strings.TrimSpace(r.Title),
		Start:       parseTime(r.Start),
		End:         parseTime(r.End),
		AmountPence: r.AmountPence,
	}
}

type gigResponse struct {
	Gig gigDTO `json:"gig"`
}

type listGigsResponse struct {
	Gigs []gigDTO `json:"gigs"`
}

type gigDTO struct {
	ID          string  `json:"id"`
	BuyerID     string  `json:"buyer_id"`
	WorkerID    string  `json:"worker_id"`
	Title       string  `json:"title"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Status      string  `json:"status"`
	AmountPence int64   `json:"amount_pence"`
	PaymentRef  *string `json:"payment_ref,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toGigDTO(gig application.Gig) gigDTO {
	return gigDTO{
		ID:          gig.ID,
		BuyerID:     gig.BuyerID,
		WorkerID:    gig.WorkerID,
		Title:       gig.Title,
		Start:       gig.Start.UTC().Format(time.RFC3339Nano),
		End:         gig.End.UTC().Format(time.RFC3339Nano),
		Status:      string(gig.Status),
		AmountPence: gig.AmountPence,
		PaymentRef:  gig.PaymentRef,
		CreatedAt:   gig.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   gig.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toGigDTOs(gigs []application.Gig) []gigDTO {
	if len(gigs) == 0 {
		return nil
	}
	out := make([]gigDTO, 0, len(gigs))
	for _, gig := range gigs {
		out = append(out, toGigDTO(gig))
	}
	return out
}

func buildListGigsParams(values url.Values, principal application.Principal) application.ListGigsParams {
	params := application.ListGigsParams{Principal: principal}

	params.WorkerID = strings.TrimSpace(values.Get("worker_id"))
	params.BuyerID = strings.TrimSpace(values.Get("buyer_id"))

	for _, status := range parseCSV(values.Get("status")) {
		params.Statuses = append(params.Statuses, application.GigStatus(status))
	}

	if after := parseTime(values.Get("starts_after")); !after.IsZero() {
		params.StartsAfter = &after
	}
	if before := parseTime(values.Get("ends_before")); !before.IsZero() {
		params.EndsBefore = &before
	}

	return params
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
