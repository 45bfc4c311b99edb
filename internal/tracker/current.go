package tracker

import (
	"github.com/i474232898/balloon-tracker/internal/common"
	"github.com/i474232898/balloon-tracker/internal/log"
)

// CurrentPositions maps the newest snapshot (file 00) to live balloon
// markers, one per well-formed entry. fetchErr is the error from fetching
// that file. Any failure yields an empty set; the reason is in the
// HourResult.
func CurrentPositions(body []byte, fetchErr error) ([]CurrentBalloon, HourResult) {
	fileID := common.FileID(0)
	balloons := make([]CurrentBalloon, 0)

	if fetchErr != nil {
		log.Warnw("current positions unavailable", "file", fileID, "reason", ReasonFetchFailed, "error", fetchErr)
		return balloons, skippedHour(0, fileID, ReasonFetchFailed, fetchErr.Error())
	}

	entries, skipped, reason := ParseSnapshot(body)
	if reason != "" {
		log.Warnw("current positions unavailable", "file", fileID, "reason", reason)
		return balloons, skippedHour(0, fileID, reason, "")
	}

	for _, e := range entries {
		balloons = append(balloons, CurrentBalloon{
			BalloonIndex: e.Index,
			Latitude:     e.Latitude,
			Longitude:    e.Longitude,
			AltitudeKm:   e.AltitudeKm,
		})
	}
	return balloons, okHour(0, fileID, len(entries), skipped)
}
