package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/able-marketplace/internal/application"
)

type suggestionService interface {
	SuggestReply(ctx context.Context, principal application.Principal, messages []application.Message) (string, error)
}

type SuggestionHandler struct {
	service   suggestionService
	responder responder
}

func NewSuggestionHandler(service suggestionService, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{service: service, responder: newResponder(logger)}
}

// Suggest produces a reply suggestion for a chat transcript. An empty
// suggestion is a valid response: the generator may be unavailable and the
// client falls back to manual composition.
func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	suggestion, err := h.service.SuggestReply(r.Context(), principal, req.toMessages())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestionResponse{Suggestion: suggestion})
}

type suggestionRequest struct {
	Messages []messageDTO `json:"messages" validate:"min=1,dive"`
}

type messageDTO struct {
	Role string `json:"role" validate:"required"`
	Text string `json:"text" validate:"required"`
}

func (r suggestionRequest) toMessages() []application.Message {
	out := make([]application.Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		out = append(out, application.Message{Role: msg.Role, Text: msg.Text})
	}
	return out
}

type suggestionResponse struct {
	Suggestion string `json:"suggestion"`
}
