package telemetry

import (
	"context"
	"time"
)

// StampLayout is the timestamp layout used in snapshot object names.
// Lexical order over stamps in this layout matches chronological order.
const StampLayout = "2006-01-02T15-04-05Z"

// Dump represents a raw telemetry snapshot fetched from a source.
type Dump struct {
	FetchedAt time.Time
	RawJSON   []byte
	FileName  string
	Stamp     string
}

// Source fetches telemetry snapshot documents.
type Source interface {
	// FetchLatest retrieves the most recent snapshot.
	FetchLatest(ctx context.Context) (*Dump, error)
	// Fetch retrieves the snapshot for a specific stamp.
	Fetch(ctx context.Context, stamp string) (*Dump, error)
	// ListEpochs returns available snapshot stamps, newest first.
	ListEpochs(ctx context.Context, limit int) ([]string, error)
	// Close releases any resources held by the source.
	Close() error
}
