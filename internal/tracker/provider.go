package tracker

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no arc or balloon has the requested key.
	ErrNotFound = errors.New("no such entity in current state")

	// ErrStale is returned when a refresh replaced the state between reading
	// an entity and writing its update back.
	ErrStale = errors.New("state was refreshed during update")

	// ErrEnrichmentFailed wraps any forecast failure during enrichment.
	ErrEnrichmentFailed = errors.New("weather enrichment failed")
)

// SnapshotSource returns the raw body of a gateway snapshot file.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, fileID string) ([]byte, error)
}

// Store holds the single current State. Updates are copy-with-update and
// apply only while cycleID is still current.
type Store interface {
	Replace(state State)
	Current() State
	UpdateArc(cycleID string, key ArcKey, fn func(ArcSegment) ArcSegment) (ArcSegment, error)
	UpdateBalloon(cycleID string, index int, fn func(CurrentBalloon) CurrentBalloon) (CurrentBalloon, error)
}

// Observer receives cycle and enrichment outcomes, typically for metrics.
type Observer interface {
	CycleCompleted(report CycleReport)
	EnrichmentCompleted(target string, enriched bool)
}

type nopObserver struct{}

func (nopObserver) CycleCompleted(CycleReport) {}

func (nopObserver) EnrichmentCompleted(string, bool) {}
