package isis

import (
	"context"
	"time"
)

// Dump represents raw IS-IS data fetched from a source.
type Dump struct {
	FetchedAt time.Time
	RawJSON   []byte
	FileName  string
	Stamp     string // Capture stamp parsed from the file name
}

// Source provides access to IS-IS routing database dumps.
type Source interface {
	// FetchLatest retrieves the most recent IS-IS database dump.
	FetchLatest(ctx context.Context) (*Dump, error)

	// Fetch retrieves the dump captured at the given stamp.
	Fetch(ctx context.Context, stamp string) (*Dump, error)

	// ListEpochs returns the capture stamps available from the source,
	// newest first, up to limit (0 means no limit).
	ListEpochs(ctx context.Context, limit int) ([]string, error)

	// Close releases any resources held by the source.
	Close() error
}
