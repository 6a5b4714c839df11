// Package archive persists a record of each finished stream. Live
// state never touches the database; a record is written once at
// stream end.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/RickEth137/ClawStream/pkg/database"
)

// ErrNotFound is returned when no record exists for a stream.
var ErrNotFound = errors.New("archive: stream record not found")

// StreamRecord is the archived summary of one broadcast.
type StreamRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	OwnerID      string `gorm:"size:64;index"`
	Title        string `gorm:"size:255"`
	StartedAt    time.Time
	EndedAt      time.Time
	PeakViewers  int
	TotalViewers int
	MessageCount int
	Tags         database.StringArray `gorm:"type:text"`
	CreatedAt    time.Time
}

func (StreamRecord) TableName() string {
	return "stream_records"
}

// Repository stores finished-stream records.
type Repository interface {
	Save(ctx context.Context, rec *StreamRecord) error
	GetByID(ctx context.Context, id string) (*StreamRecord, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]StreamRecord, error)
}

// Noop is used when no database is configured. Saves succeed and
// vanish; reads find nothing.
type Noop struct{}

func (Noop) Save(ctx context.Context, rec *StreamRecord) error { return nil }

func (Noop) GetByID(ctx context.Context, id string) (*StreamRecord, error) {
	return nil, ErrNotFound
}

func (Noop) ListByOwner(ctx context.Context, ownerID string, limit int) ([]StreamRecord, error) {
	return nil, nil
}
