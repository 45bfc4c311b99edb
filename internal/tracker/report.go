package tracker

import "time"

// HourStatus is the outcome of processing one snapshot file.
type HourStatus string

const (
	HourOK      HourStatus = "ok"
	HourSkipped HourStatus = "skipped"
)

// SkipReason explains why a file or an entry was dropped.
type SkipReason string

const (
	ReasonFetchFailed   SkipReason = "fetch_failed"
	ReasonMalformedJSON SkipReason = "malformed_json"
	ReasonNotArray      SkipReason = "not_array"
	ReasonTooShort      SkipReason = "too_short"
	ReasonNonNumeric    SkipReason = "non_numeric"
)

// EntrySkip records one rejected entry of an otherwise usable snapshot.
type EntrySkip struct {
	Index  int        `json:"index"`
	Reason SkipReason `json:"reason"`
}

// HourResult is the per-file unit of work in a refresh cycle.
type HourResult struct {
	Hour     int         `json:"hour"`
	FileID   string      `json:"fileId"`
	Status   HourStatus  `json:"status"`
	Reason   SkipReason  `json:"reason,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Accepted int         `json:"accepted"`
	Skipped  []EntrySkip `json:"skipped,omitempty"`
}

func okHour(hour int, fileID string, accepted int, skipped []EntrySkip) HourResult {
	return HourResult{
		Hour:     hour,
		FileID:   fileID,
		Status:   HourOK,
		Accepted: accepted,
		Skipped:  skipped,
	}
}

func skippedHour(hour int, fileID string, reason SkipReason, detail string) HourResult {
	return HourResult{
		Hour:   hour,
		FileID: fileID,
		Status: HourSkipped,
		Reason: reason,
		Detail: detail,
	}
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	ID           string       `json:"id"`
	StartedAt    time.Time    `json:"startedAt"`
	DurationMs   int64        `json:"durationMs"`
	Hours        []HourResult `json:"hours"`
	Current      HourResult   `json:"current"`
	TrackCount   int          `json:"trackCount"`
	ArcCount     int          `json:"arcCount"`
	BalloonCount int          `json:"balloonCount"`
}

// HoursSkipped counts files that contributed nothing.
func (r CycleReport) HoursSkipped() int {
	n := 0
	for _, h := range r.Hours {
		if h.Status == HourSkipped {
			n++
		}
	}
	return n
}

// EntriesSkipped counts malformed entries across all usable files.
func (r CycleReport) EntriesSkipped() int {
	n := 0
	for _, h := range r.Hours {
		n += len(h.Skipped)
	}
	return n
}
