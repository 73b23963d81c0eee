package collector

import (
	"context"
	"time"

	"VolumeSentinel/internal/model"
)

// Fetcher returns the daily bars of one instrument between start and end
// inclusive, oldest first. An empty slice with a nil error means the provider
// had no rows for that range.
type Fetcher interface {
	Fetch(ctx context.Context, code string, start, end time.Time) ([]model.Bar, error)
	Name() string
}
