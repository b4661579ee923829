// Package coords maps pixel positions on a rendered strike-zone graphic
// onto a normalized plate frame: x in [-0.5, 0.5] left to right and z in
// [0, 1] bottom to top.
package coords

import (
	"fmt"
	"strconv"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

const (
	minBoxPixels = 20.0

	// Values outside the unit frame but within this padding are plausible
	// (balls well off the plate); anything beyond is a scrape error.
	paddingXMin = -1.0
	paddingXMax = 1.0
	paddingZMin = -0.5
	paddingZMax = 1.5
)

// Horizontal and vertical band names of the 3x3 zone grid.
const (
	BandLeft   = "left"
	BandRight  = "right"
	BandHigh   = "high"
	BandLow    = "low"
	BandMiddle = "middle"
)

// Pixel is a point in image space; Y grows downwards.
type Pixel struct {
	X float64
	Y float64
}

// Box is the bounding box of the zone graphic in image space.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PlateCoordinate is a normalized location and its zone label "vertical/horizontal".
type PlateCoordinate struct {
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
	Zone string  `json:"zone"`
}

// Normalize converts a pixel to plate coordinates, inverting Y.
func Normalize(p Pixel, box Box) (PlateCoordinate, error) {
	if box.Width <= 0 || box.Height <= 0 {
		return PlateCoordinate{}, fmt.Errorf("coords: degenerate box %vx%v", box.Width, box.Height)
	}
	x := (p.X-box.X)/box.Width - 0.5
	z := 1 - (p.Y-box.Y)/box.Height
	return PlateCoordinate{X: x, Z: z, Zone: ZoneLabel(x, z)}, nil
}

// HorizontalBand splits x into thirds.
func HorizontalBand(x float64) string {
	switch {
	case x < -1.0/6:
		return BandLeft
	case x > 1.0/6:
		return BandRight
	default:
		return BandMiddle
	}
}

// VerticalBand splits z into thirds.
func VerticalBand(z float64) string {
	switch {
	case z > 2.0/3:
		return BandHigh
	case z < 1.0/3:
		return BandLow
	default:
		return BandMiddle
	}
}

// ZoneLabel is deterministic for a given (x, z).
func ZoneLabel(x, z float64) string {
	return VerticalBand(z) + "/" + HorizontalBand(x)
}

// AssessConfidence grades a coordinate. Tiny boxes or implausible values
// are low; values outside the unit frame degrade the base tier one step.
func AssessConfidence(c PlateCoordinate, box Box, base domain.Confidence) domain.Confidence {
	if box.Width < minBoxPixels || box.Height < minBoxPixels {
		return domain.ConfidenceLow
	}
	if c.X < paddingXMin || c.X > paddingXMax || c.Z < paddingZMin || c.Z > paddingZMax {
		return domain.ConfidenceLow
	}
	if c.X < -0.5 || c.X > 0.5 || c.Z < 0 || c.Z > 1 {
		return base.Degrade()
	}
	return base
}

// Observation is a coordinate reported by one source.
type Observation struct {
	Source     string
	Coordinate PlateCoordinate
	Confidence domain.Confidence
}

// Merge picks the most trustworthy observation; ties go to the source
// listed earliest in priority. Sources missing from priority rank last.
func Merge(observations []Observation, priority []string) (Observation, bool) {
	if len(observations) == 0 {
		return Observation{}, false
	}
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	sourceRank := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		return len(priority)
	}

	best := observations[0]
	for _, obs := range observations[1:] {
		switch {
		case obs.Confidence.Rank() > best.Confidence.Rank():
			best = obs
		case obs.Confidence.Rank() == best.Confidence.Rank() && sourceRank(obs.Source) < sourceRank(best.Source):
			best = obs
		}
	}
	return best, true
}

// Consistency reports how two observations of the same event disagree.
// Each axis is flagged on its own; a zone mismatch can occur with either.
type Consistency struct {
	HorizontalMismatch bool    `json:"horizontalMismatch"`
	VerticalMismatch   bool    `json:"verticalMismatch"`
	ZoneMismatch       bool    `json:"zoneMismatch"`
	DeltaX             float64 `json:"deltaX"`
	DeltaZ             float64 `json:"deltaZ"`
}

// Consistent is true when nothing was flagged.
func (c Consistency) Consistent() bool {
	return !c.HorizontalMismatch && !c.VerticalMismatch && !c.ZoneMismatch
}

// ValidateConsistency compares two coordinates with an absolute tolerance per axis.
func ValidateConsistency(a, b PlateCoordinate, tolerance float64) Consistency {
	dx := abs(a.X - b.X)
	dz := abs(a.Z - b.Z)
	return Consistency{
		HorizontalMismatch: dx > tolerance,
		VerticalMismatch:   dz > tolerance,
		ZoneMismatch:       a.Zone != b.Zone,
		DeltaX:             dx,
		DeltaZ:             dz,
	}
}

// Fields names the row fields a source stores pixel positions in.
type Fields struct {
	X string
	Y string
}

// Row field names written by Apply.
const (
	FieldPlateX     = "plate_x"
	FieldPlateZ     = "plate_z"
	FieldZone       = "zone"
	FieldConfidence = "coord_confidence"
)

// Apply reads pixel fields from row and returns the row with normalized
// coordinates added. Rows without both pixel fields are returned unchanged.
func Apply(row domain.Row, fields Fields, box Box, base domain.Confidence) (domain.Row, bool, error) {
	px, okX := row.FloatField(fields.X)
	py, okY := row.FloatField(fields.Y)
	if !okX || !okY {
		return row, false, nil
	}
	c, err := Normalize(Pixel{X: px, Y: py}, box)
	if err != nil {
		return row, false, err
	}
	conf := AssessConfidence(c, box, base)
	out := row.WithField(FieldPlateX, formatFloat(c.X)).
		WithField(FieldPlateZ, formatFloat(c.Z)).
		WithField(FieldZone, c.Zone).
		WithField(FieldConfidence, string(conf))
	return out, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
