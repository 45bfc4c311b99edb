package tracker

import (
	"time"

	"github.com/i474232898/balloon-tracker/internal/weather"
)

const (
	DefaultStrokeWidth  = 0.3
	EnrichedStrokeWidth = 0.6
)

// Palette holds the display colors assigned to tracks by key.
var Palette = []string{
	"#fbbf24", "#3b82f6", "#22c55e", "#f97316",
	"#a855f7", "#06b6d4", "#ec4899", "#84cc16", "#f9a8d4",
}

// ColorFor returns the palette color for a track key.
func ColorFor(key int) string {
	if key < 0 {
		key = -key
	}
	return Palette[key%len(Palette)]
}

// TrackPoint is one balloon's position at one past hour.
type TrackPoint struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitudeKm"`
	HoursAgo   int     `json:"hoursAgo"`
}

// BalloonTrack is the sequence of positions inferred for one track key.
// Points are kept in push order, newest hour first.
type BalloonTrack struct {
	Key    int          `json:"key"`
	Points []TrackPoint `json:"points"`
}

// ArcKey identifies an arc within a cycle.
type ArcKey struct {
	BalloonIndex int
	Seq          int
}

// ArcSegment joins two consecutive points of one track, directed from the
// older point (start) to the newer one (end). Altitude and hour come from
// the older point, which is also where enrichment looks up the weather.
type ArcSegment struct {
	Seq          int                 `json:"seq"`
	BalloonIndex int                 `json:"balloonIndex"`
	StartLat     float64             `json:"startLat"`
	StartLon     float64             `json:"startLon"`
	EndLat       float64             `json:"endLat"`
	EndLon       float64             `json:"endLon"`
	AltitudeKm   float64             `json:"altitudeKm"`
	HoursAgo     int                 `json:"hoursAgo"`
	Color        string              `json:"color"`
	StrokeWidth  float64             `json:"strokeWidth"`
	Annotation   *weather.Annotation `json:"annotation,omitempty"`
}

func (a ArcSegment) Key() ArcKey {
	return ArcKey{BalloonIndex: a.BalloonIndex, Seq: a.Seq}
}

// WithAnnotation returns a copy of the arc carrying ann.
func (a ArcSegment) WithAnnotation(ann weather.Annotation) ArcSegment {
	a.Annotation = &ann
	a.StrokeWidth = EnrichedStrokeWidth
	return a
}

// CurrentBalloon is a live marker taken from the newest snapshot.
type CurrentBalloon struct {
	BalloonIndex int                 `json:"balloonIndex"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	AltitudeKm   float64             `json:"altitudeKm"`
	Annotation   *weather.Annotation `json:"annotation,omitempty"`
}

// WithAnnotation returns a copy of the balloon carrying ann.
func (b CurrentBalloon) WithAnnotation(ann weather.Annotation) CurrentBalloon {
	b.Annotation = &ann
	return b
}

// State is everything one refresh cycle produced. It is replaced wholesale
// by the next cycle; values inside are never mutated after publication.
type State struct {
	CycleID     string           `json:"cycleId"`
	RefreshedAt time.Time        `json:"refreshedAt"`
	Arcs        []ArcSegment     `json:"arcs"`
	Balloons    []CurrentBalloon `json:"balloons"`
	Report      CycleReport      `json:"report"`
}

// FindArc returns the position of the arc with key in s.Arcs.
func (s State) FindArc(key ArcKey) (int, bool) {
	for i := range s.Arcs {
		if s.Arcs[i].Key() == key {
			return i, true
		}
	}
	return -1, false
}

// FindBalloon returns the position of the balloon with index in s.Balloons.
func (s State) FindBalloon(index int) (int, bool) {
	for i := range s.Balloons {
		if s.Balloons[i].BalloonIndex == index {
			return i, true
		}
	}
	return -1, false
}
