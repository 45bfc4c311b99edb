package tracker

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/balloon-tracker/internal/common"
	"github.com/i474232898/balloon-tracker/internal/log"
)

// Aggregator rebuilds balloon trajectories from the gateway's hourly files.
type Aggregator struct {
	source      SnapshotSource
	resolver    IdentityResolver
	concurrency int
	hours       int
}

// NewAggregator creates an Aggregator. A nil resolver means positional
// identity; concurrency below 1 means one request at a time.
func NewAggregator(source SnapshotSource, resolver IdentityResolver, concurrency int) *Aggregator {
	if resolver == nil {
		resolver = PositionalResolver{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		source:      source,
		resolver:    resolver,
		concurrency: concurrency,
		hours:       common.HoursTracked,
	}
}

// Trajectories is the output of one aggregation pass.
type Trajectories struct {
	Tracks []BalloonTrack
	Arcs   []ArcSegment
	Hours  []HourResult

	// Latest is the raw body of file 00 as fetched this pass, so live
	// positions come from the same snapshot as the arcs.
	Latest    []byte
	LatestErr error
}

type fetched struct {
	body []byte
	err  error
}

// Aggregate fetches every hourly file and groups accepted entries into
// tracks. Failed or malformed files are recorded and skipped; Aggregate
// itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context) Trajectories {
	results := make([]fetched, a.hours)

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for hour := 0; hour < a.hours; hour++ {
		hour := hour
		g.Go(func() error {
			body, err := a.source.FetchSnapshot(ctx, common.FileID(hour))
			results[hour] = fetched{body: body, err: err}
			return nil
		})
	}
	_ = g.Wait()

	tracks := make(map[int]*BalloonTrack)
	heads := make(map[int]TrackPoint)
	hours := make([]HourResult, 0, a.hours)

	// Hours are folded newest first regardless of fetch order.
	for hour, res := range results {
		fileID := common.FileID(hour)
		if res.err != nil {
			log.Warnw("skipping snapshot", "file", fileID, "reason", ReasonFetchFailed, "error", res.err)
			hours = append(hours, skippedHour(hour, fileID, ReasonFetchFailed, res.err.Error()))
			continue
		}

		entries, skipped, reason := ParseSnapshot(res.body)
		if reason != "" {
			log.Warnw("skipping snapshot", "file", fileID, "reason", reason)
			hours = append(hours, skippedHour(hour, fileID, reason, ""))
			continue
		}
		if len(skipped) > 0 {
			log.Debugw("dropped malformed entries", "file", fileID, "count", len(skipped))
		}

		keys := a.resolver.Resolve(heads, entries)
		for i, e := range entries {
			key := keys[i]
			t, ok := tracks[key]
			if !ok {
				t = &BalloonTrack{Key: key}
				tracks[key] = t
			}
			p := TrackPoint{
				Latitude:   e.Latitude,
				Longitude:  e.Longitude,
				AltitudeKm: e.AltitudeKm,
				HoursAgo:   hour,
			}
			t.Points = append(t.Points, p)
			heads[key] = p
		}
		hours = append(hours, okHour(hour, fileID, len(entries), skipped))
	}

	ordered := make([]BalloonTrack, 0, len(tracks))
	for _, t := range tracks {
		ordered = append(ordered, *t)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	return Trajectories{
		Tracks:    ordered,
		Arcs:      BuildArcs(ordered),
		Hours:     hours,
		Latest:    results[0].body,
		LatestErr: results[0].err,
	}
}

// BuildArcs emits one arc per consecutive pair of points in each track.
// Tracks with fewer than two points contribute nothing.
func BuildArcs(tracks []BalloonTrack) []ArcSegment {
	arcs := make([]ArcSegment, 0)
	for _, t := range tracks {
		color := ColorFor(t.Key)
		for j := 1; j < len(t.Points); j++ {
			newer, older := t.Points[j-1], t.Points[j]
			arcs = append(arcs, ArcSegment{
				Seq:          j,
				BalloonIndex: t.Key,
				StartLat:     older.Latitude,
				StartLon:     older.Longitude,
				EndLat:       newer.Latitude,
				EndLon:       newer.Longitude,
				AltitudeKm:   older.AltitudeKm,
				HoursAgo:     older.HoursAgo,
				Color:        color,
				StrokeWidth:  DefaultStrokeWidth,
			})
		}
	}
	return arcs
}
