package weather

import "math"

// PressureLevel pairs a forecast pressure label with its approximate
// standard-atmosphere altitude.
type PressureLevel struct {
	Label      string
	AltitudeKm float64
}

// pressureLevels is ordered by descending pressure. Lookup relies on this
// order for tie-breaking.
var pressureLevels = []PressureLevel{
	{"1000hPa", 0.11},
	{"975hPa", 0.32},
	{"950hPa", 0.50},
	{"925hPa", 0.80},
	{"900hPa", 1.0},
	{"850hPa", 1.5},
	{"800hPa", 1.9},
	{"700hPa", 3.0},
	{"600hPa", 4.2},
	{"500hPa", 5.6},
	{"400hPa", 7.2},
	{"300hPa", 9.2},
	{"250hPa", 10.4},
	{"200hPa", 11.8},
	{"150hPa", 13.5},
	{"100hPa", 15.8},
	{"70hPa", 17.7},
	{"50hPa", 19.3},
	{"30hPa", 22.0},
}

// NearestPressureLevel returns the level whose reference altitude is closest
// to altKm. On a tie the earlier table entry wins.
func NearestPressureLevel(altKm float64) PressureLevel {
	nearest := pressureLevels[0]
	minDiff := math.Abs(altKm - nearest.AltitudeKm)
	for _, lvl := range pressureLevels[1:] {
		if diff := math.Abs(altKm - lvl.AltitudeKm); diff < minDiff {
			nearest = lvl
			minDiff = diff
		}
	}
	return nearest
}
