package http

import (
	"time"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/feed"
)

// suggestionDTO mirrors the document field names the collection stores, so
// the wire shape matches what any other client of the same collection sees.
type suggestionDTO struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"authorId"`
	// AuthorLabel is the short display form of the author id, the way the
	// page renders attribution.
	AuthorLabel string     `json:"authorLabel,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

func authorLabel(authorID string) string {
	const width = 8
	runes := []rune(authorID)
	if len(runes) <= width {
		return authorID
	}
	return string(runes[:width])
}

type submitStateDTO struct {
	InFlight bool   `json:"inFlight"`
	Error    string `json:"error,omitempty"`
}

// viewDTO is the presentation contract for one session: complete state per
// push, so a consumer that drops an intermediate frame loses nothing.
type viewDTO struct {
	Loading     bool            `json:"loading"`
	Error       string          `json:"error,omitempty"`
	PrincipalID string          `json:"principalId,omitempty"`
	Feed        []suggestionDTO `json:"feed"`
	Count       int             `json:"count"`
	SubmitState submitStateDTO  `json:"submitState"`
	Draft       string          `json:"draft"`
	DraftChars  int             `json:"draftChars"`
	DraftLimit  int             `json:"draftLimit"`
}

func toSuggestionDTOs(suggestions []domain.Suggestion) []suggestionDTO {
	dtos := make([]suggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		dtos = append(dtos, suggestionDTO{
			ID:          s.ID,
			Text:        s.Text,
			AuthorID:    s.AuthorID,
			AuthorLabel: authorLabel(s.AuthorID),
			CreatedAt:   s.CreatedAt,
		})
	}
	return dtos
}

func toViewDTO(view feed.View) viewDTO {
	dto := viewDTO{
		Loading:     view.Loading,
		PrincipalID: view.PrincipalID,
		Feed:        toSuggestionDTOs(view.Feed),
		Count:       len(view.Feed),
		SubmitState: submitStateDTO{InFlight: view.Submitting},
		Draft:       view.Draft,
		DraftChars:  view.DraftChars,
		DraftLimit:  domain.MaxSuggestionChars,
	}
	if view.Err != nil {
		dto.Error = view.Err.Error()
	}
	if view.SubmitErr != nil {
		dto.SubmitState.Error = view.SubmitErr.Error()
	}
	return dto
}
