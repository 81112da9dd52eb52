package isis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockSource is a Source implementation for testing.
type MockSource struct {
	Dump     *Dump
	FetchErr error
	Closed   bool
}

// NewMockSource creates a new MockSource with the given dump data.
func NewMockSource(rawJSON []byte, fileName string) *MockSource {
	return &MockSource{
		Dump: &Dump{
			FetchedAt: time.Now(),
			RawJSON:   rawJSON,
			FileName:  fileName,
			Stamp:     strings.TrimSuffix(fileName, KeySuffix),
		},
	}
}

// FetchLatest returns the configured dump or error.
func (m *MockSource) FetchLatest(ctx context.Context) (*Dump, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Dump, nil
}

// Fetch returns the configured dump when the stamp matches.
func (m *MockSource) Fetch(ctx context.Context, stamp string) (*Dump, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Dump == nil || m.Dump.Stamp != stamp {
		return nil, fmt.Errorf("no IS-IS dump for stamp %s", stamp)
	}
	return m.Dump, nil
}

// ListEpochs returns the configured dump's stamp.
func (m *MockSource) ListEpochs(ctx context.Context, limit int) ([]string, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Dump == nil {
		return []string{}, nil
	}
	return []string{m.Dump.Stamp}, nil
}

// Close marks the source as closed.
func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}
