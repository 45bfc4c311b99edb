package tracker

import (
	"math"
	"sort"
)

// IdentityResolver decides which track each accepted entry of an older
// snapshot belongs to. heads holds the most recent point of every track
// built so far (empty for the first usable snapshot). The returned slice has
// one track key per entry.
type IdentityResolver interface {
	Resolve(heads map[int]TrackPoint, entries []Entry) []int
}

// PositionalResolver treats the array index as the balloon identity. This is
// what the gateway implies but does not promise: if it ever reorders a
// file, tracks silently splice different balloons together.
type PositionalResolver struct{}

func (PositionalResolver) Resolve(_ map[int]TrackPoint, entries []Entry) []int {
	keys := make([]int, len(entries))
	for i, e := range entries {
		keys[i] = e.Index
	}
	return keys
}

// NearestResolver matches entries to track heads by great-circle distance,
// closest pairs first. A pair further apart than MaxJumpKm is never matched
// (zero means unbounded). Unmatched entries open new tracks.
type NearestResolver struct {
	MaxJumpKm float64
}

func (r NearestResolver) Resolve(heads map[int]TrackPoint, entries []Entry) []int {
	if len(heads) == 0 {
		return PositionalResolver{}.Resolve(heads, entries)
	}

	type candidate struct {
		entry int
		key   int
		dist  float64
	}

	maxKey := -1
	var candidates []candidate
	for key, head := range heads {
		if key > maxKey {
			maxKey = key
		}
		for i, e := range entries {
			d := haversineKm(head.Latitude, head.Longitude, e.Latitude, e.Longitude)
			if r.MaxJumpKm > 0 && d > r.MaxJumpKm {
				continue
			}
			candidates = append(candidates, candidate{entry: i, key: key, dist: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.entry != b.entry {
			return a.entry < b.entry
		}
		return a.key < b.key
	})

	keys := make([]int, len(entries))
	assigned := make([]bool, len(entries))
	claimed := make(map[int]bool, len(heads))
	for _, c := range candidates {
		if assigned[c.entry] || claimed[c.key] {
			continue
		}
		keys[c.entry] = c.key
		assigned[c.entry] = true
		claimed[c.key] = true
	}

	for i := range entries {
		if !assigned[i] {
			maxKey++
			keys[i] = maxKey
		}
	}
	return keys
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
