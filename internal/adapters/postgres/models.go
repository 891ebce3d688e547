package postgres

import (
	"time"

	"github.com/google/uuid"
)

type suggestionModel struct {
	SuggestionID   uuid.UUID `gorm:"column:suggestion_id;type:uuid;default:gen_random_uuid();primaryKey"`
	CollectionPath string    `gorm:"column:collection_path"`
	Text           string    `gorm:"column:text"`
	AuthorID       string    `gorm:"column:author_id"`
	Extra          string    `gorm:"column:extra;type:jsonb;default:'{}'"`
	// created_at is server-assigned: the column default stamps the row at
	// commit and GORM backfills it through RETURNING. autoCreateTime is off
	// so a client clock can never leak into the feed ordering.
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;default:clock_timestamp()"`
}

func (suggestionModel) TableName() string { return "suggestions" }
