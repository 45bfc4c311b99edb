package tracker

import (
	"bytes"
	"encoding/json"
)

// Entry is one accepted position of a raw snapshot. Index is its position in
// the file, the only identity the gateway provides.
type Entry struct {
	Index      int
	Latitude   float64
	Longitude  float64
	AltitudeKm float64
}

// ParseSnapshot decodes a raw snapshot file. When the file as a whole is
// unusable, reason is non-empty and no entries are returned. Otherwise
// every entry is either accepted or listed in skipped.
func ParseSnapshot(body []byte) (entries []Entry, skipped []EntrySkip, reason SkipReason) {
	if !json.Valid(body) {
		return nil, nil, ReasonMalformedJSON
	}

	var raw []json.RawMessage
	if !isArray(body) || json.Unmarshal(body, &raw) != nil {
		return nil, nil, ReasonNotArray
	}

	entries = make([]Entry, 0, len(raw))
	for idx, item := range raw {
		e, why := parseEntry(idx, item)
		if why != "" {
			skipped = append(skipped, EntrySkip{Index: idx, Reason: why})
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, ""
}

// parseEntry accepts [lat, lon, alt?, ...]. Fields past the third are ignored.
func parseEntry(idx int, item json.RawMessage) (Entry, SkipReason) {
	var fields []json.RawMessage
	if !isArray(item) || json.Unmarshal(item, &fields) != nil {
		return Entry{}, ReasonNotArray
	}
	if len(fields) < 2 {
		return Entry{}, ReasonTooShort
	}

	lat, ok := number(fields[0])
	if !ok {
		return Entry{}, ReasonNonNumeric
	}
	lon, ok := number(fields[1])
	if !ok {
		return Entry{}, ReasonNonNumeric
	}

	e := Entry{Index: idx, Latitude: lat, Longitude: lon}
	if len(fields) >= 3 {
		if alt, ok := number(fields[2]); ok {
			e.AltitudeKm = alt
		}
	}
	return e, ""
}

func isArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// number decodes a JSON number. null, strings and booleans are rejected.
func number(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}
	if c := trimmed[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return 0, false
	}
	return f, true
}
