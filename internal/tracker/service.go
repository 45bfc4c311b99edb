package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/balloon-tracker/internal/log"
	"github.com/i474232898/balloon-tracker/internal/weather"
)

const (
	TargetArc     = "arc"
	TargetBalloon = "balloon"
)

// DefaultRefreshTimeout bounds a refresh cycle unless SetRefreshTimeout
// says otherwise.
const DefaultRefreshTimeout = 2 * time.Minute

// Service orchestrates refresh cycles and on-demand weather enrichment.
type Service struct {
	store      Store
	aggregator *Aggregator
	provider   weather.Provider
	observer   Observer

	refreshes      singleflight.Group
	refreshTimeout time.Duration
	now            func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, aggregator *Aggregator, provider weather.Provider) *Service {
	return &Service{
		store:          store,
		aggregator:     aggregator,
		provider:       provider,
		observer:       nopObserver{},
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
	}
}

// SetRefreshTimeout sets the deadline applied to every refresh cycle.
// Non-positive values are ignored.
func (s *Service) SetRefreshTimeout(d time.Duration) {
	if d > 0 {
		s.refreshTimeout = d
	}
}

// SetObserver installs o to receive cycle and enrichment outcomes.
func (s *Service) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// Refresh runs one refresh cycle. A call made while a cycle is already in
// flight waits for that cycle and returns its report with shared set.
// The cycle always runs under the service's refresh timeout and is not
// cancelled when the caller that started it goes away, since other callers
// may have joined it.
func (s *Service) Refresh(ctx context.Context) (CycleReport, bool) {
	v, _, shared := s.refreshes.Do("refresh", func() (interface{}, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.runCycle(cycleCtx), nil
	})
	return v.(CycleReport), shared
}

func (s *Service) runCycle(ctx context.Context) CycleReport {
	started := s.now().UTC()
	id := uuid.NewString()
	log.Infow("refresh cycle started", "cycle", id)

	traj := s.aggregator.Aggregate(ctx)
	balloons, cur := CurrentPositions(traj.Latest, traj.LatestErr)

	report := CycleReport{
		ID:           id,
		StartedAt:    started,
		DurationMs:   s.now().Sub(started).Milliseconds(),
		Hours:        traj.Hours,
		Current:      cur,
		TrackCount:   len(traj.Tracks),
		ArcCount:     len(traj.Arcs),
		BalloonCount: len(balloons),
	}

	s.store.Replace(State{
		CycleID:     id,
		RefreshedAt: started,
		Arcs:        traj.Arcs,
		Balloons:    balloons,
		Report:      report,
	})
	s.observer.CycleCompleted(report)

	log.Infow("refresh cycle completed",
		"cycle", id,
		"duration_ms", report.DurationMs,
		"hours_skipped", report.HoursSkipped(),
		"entries_skipped", report.EntriesSkipped(),
		"arcs", report.ArcCount,
		"balloons", report.BalloonCount,
	)
	return report
}

// State returns the current published state.
func (s *Service) State() State {
	return s.store.Current()
}

// EnrichArc attaches weather at the arc's older endpoint. On failure the
// stored arc is unchanged and returned alongside the error.
func (s *Service) EnrichArc(ctx context.Context, key ArcKey) (ArcSegment, error) {
	state := s.store.Current()
	i, ok := state.FindArc(key)
	if !ok {
		return ArcSegment{}, ErrNotFound
	}
	arc := state.Arcs[i]

	ann, err := s.weatherAt(ctx, arc.StartLat, arc.StartLon, arc.AltitudeKm)
	if err != nil {
		log.Warnw("arc enrichment failed", "provider", s.provider.Name(), "balloon", key.BalloonIndex, "seq", key.Seq, "error", err)
		s.observer.EnrichmentCompleted(TargetArc, false)
		return arc, fmt.Errorf("%w: %v", ErrEnrichmentFailed, err)
	}

	updated, err := s.store.UpdateArc(state.CycleID, key, func(a ArcSegment) ArcSegment {
		return a.WithAnnotation(ann)
	})
	if err != nil {
		s.observer.EnrichmentCompleted(TargetArc, false)
		if errors.Is(err, ErrStale) {
			log.Debugw("discarding stale arc enrichment", "balloon", key.BalloonIndex, "seq", key.Seq)
		}
		return arc, err
	}

	s.observer.EnrichmentCompleted(TargetArc, true)
	return updated, nil
}

// EnrichBalloon attaches weather at a live balloon's position.
func (s *Service) EnrichBalloon(ctx context.Context, index int) (CurrentBalloon, error) {
	state := s.store.Current()
	i, ok := state.FindBalloon(index)
	if !ok {
		return CurrentBalloon{}, ErrNotFound
	}
	b := state.Balloons[i]

	ann, err := s.weatherAt(ctx, b.Latitude, b.Longitude, b.AltitudeKm)
	if err != nil {
		log.Warnw("balloon enrichment failed", "provider", s.provider.Name(), "balloon", index, "error", err)
		s.observer.EnrichmentCompleted(TargetBalloon, false)
		return b, fmt.Errorf("%w: %v", ErrEnrichmentFailed, err)
	}

	updated, err := s.store.UpdateBalloon(state.CycleID, index, func(cb CurrentBalloon) CurrentBalloon {
		return cb.WithAnnotation(ann)
	})
	if err != nil {
		s.observer.EnrichmentCompleted(TargetBalloon, false)
		if errors.Is(err, ErrStale) {
			log.Debugw("discarding stale balloon enrichment", "balloon", index)
		}
		return b, err
	}

	s.observer.EnrichmentCompleted(TargetBalloon, true)
	return updated, nil
}

// weatherAt queries the provider and stamps the annotation with the
// provider's name when it did not set a source itself.
func (s *Service) weatherAt(ctx context.Context, lat, lon, altKm float64) (weather.Annotation, error) {
	ann, err := s.provider.WeatherAt(ctx, lat, lon, altKm)
	if err != nil {
		return weather.Annotation{}, err
	}
	if ann.Source == "" {
		ann.Source = s.provider.Name()
	}
	return ann, nil
}
