package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/feed"
	"github.com/viralforge/suggestbox/internal/ports"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := h.signer.ParseAndValidate(raw)
		if err != nil {
			status, code, msg := http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
			if errors.Is(err, domain.ErrTokenExpired) {
				status, code, msg = mapDomainError(err)
			}
			writeError(w, status, code, msg)
			return
		}

		principal := domain.Principal{ID: claims.PrincipalID, Token: raw}
		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// signInAnonymously issues a fresh anonymous principal. Every call is a new
// logical session; clients hold on to the returned token for submissions.
func (h *Handler) signInAnonymously(w http.ResponseWriter, r *http.Request) {
	provider := h.newProvider()
	principal, err := provider.SignInAnonymously(r.Context())
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "sign_in_anonymously", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"principalId": principal.ID,
		"token":       principal.Token,
	})
}

// listSuggestions materializes the current snapshot for non-live consumers,
// sorted the same way the live feed is.
func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context(), h.cfg.SuggestionsPath())
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "list_suggestions", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	suggestions := make([]domain.Suggestion, 0, len(docs))
	for _, doc := range docs {
		suggestions = append(suggestions, feed.SuggestionFromDocument(doc))
	}
	domain.SortFeed(suggestions)

	writeSuccess(w, http.StatusOK, map[string]any{
		"count":       len(suggestions),
		"suggestions": toSuggestionDTOs(suggestions),
	})
}

type submitRequest struct {
	Text string `json:"text"`
}

// submitSuggestion is the REST submission path. The text boundary is
// enforced here, before the store is touched: empty or over-budget text is
// a validation error.
func (h *Handler) submitSuggestion(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal")
		return
	}

	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := domain.ValidateSuggestionText(req.Text); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}

	id, err := h.store.Append(r.Context(), h.cfg.SuggestionsPath(), ports.Document{
		Fields: map[string]any{
			"text":     strings.TrimSpace(req.Text),
			"authorId": principal.ID,
		},
	})
	if err != nil {
		status, code, msg := mapDomainError(domain.ErrSubmissionFailed)
		logHTTPOperationError(r.Context(), "submit_suggestion", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"id": id})
}

func decodeBody(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
