package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viralforge/suggestbox/internal/ports"
	"gorm.io/gorm"
)

// SuggestionRepository is the durable document set behind the live store.
// It persists rows only; change fan-out is the notifier's concern.
type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Insert appends one document. The creation timestamp always comes from the
// database, so the returned document carries the resolved commit time even
// though the caller submitted a pending one.
func (r *SuggestionRepository) Insert(ctx context.Context, path string, doc ports.Document) (ports.Document, error) {
	rec, err := toSuggestionModel(path, doc)
	if err != nil {
		return ports.Document{}, err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return ports.Document{}, fmt.Errorf("insert suggestion: %w", err)
	}
	return toDocument(rec)
}

// List materializes the full current document set for path in commit order.
// Presentation ordering is the client's job; the collection itself is
// unordered.
func (r *SuggestionRepository) List(ctx context.Context, path string) ([]ports.Document, error) {
	var recs []suggestionModel
	err := r.db.WithContext(ctx).
		Where("collection_path = ?", path).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}

	docs := make([]ports.Document, 0, len(recs))
	for _, rec := range recs {
		doc, mapErr := toDocument(rec)
		if mapErr != nil {
			return nil, mapErr
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func toSuggestionModel(path string, doc ports.Document) (suggestionModel, error) {
	rec := suggestionModel{CollectionPath: path, Extra: "{}"}

	extra := make(map[string]any)
	for key, value := range doc.Fields {
		switch key {
		case "text":
			if text, ok := value.(string); ok {
				rec.Text = text
				continue
			}
		case "authorId":
			if author, ok := value.(string); ok {
				rec.AuthorID = author
				continue
			}
		}
		extra[key] = value
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return suggestionModel{}, fmt.Errorf("encode extra fields: %w", err)
		}
		rec.Extra = string(raw)
	}
	return rec, nil
}

func toDocument(rec suggestionModel) (ports.Document, error) {
	fields := map[string]any{
		"text":     rec.Text,
		"authorId": rec.AuthorID,
	}
	if rec.Extra != "" && rec.Extra != "{}" {
		extra := make(map[string]any)
		if err := json.Unmarshal([]byte(rec.Extra), &extra); err != nil {
			return ports.Document{}, fmt.Errorf("decode extra fields: %w", err)
		}
		for key, value := range extra {
			if _, taken := fields[key]; !taken {
				fields[key] = value
			}
		}
	}

	createdAt := rec.CreatedAt.UTC()
	return ports.Document{
		ID:        rec.SuggestionID.String(),
		Fields:    fields,
		CreatedAt: &createdAt,
	}, nil
}
