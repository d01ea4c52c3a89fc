package units

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownUnit       = errors.New("unknown unit of measure")
	ErrIncompatibleUnits = errors.New("incompatible units of measure")
)

type Converter interface {
	CanConvert(from, to string) bool
	Convert(value float64, from, to string) (float64, error)
}

type unit struct {
	dimension string
	factor    float64 // multiplier to the dimension's base unit
}

type converter struct {
	units map[string]unit
}

// New returns a converter over the built-in unit table. Codes are matched
// case-insensitively.
func New() Converter {
	return &converter{units: unitTable}
}

func (c *converter) lookup(code string) (unit, bool) {
	u, ok := c.units[strings.ToLower(strings.TrimSpace(code))]
	return u, ok
}

func (c *converter) CanConvert(from, to string) bool {
	if strings.EqualFold(from, to) {
		return true
	}

	f, ok := c.lookup(from)
	if !ok {
		return false
	}
	t, ok := c.lookup(to)
	if !ok {
		return false
	}
	return f.dimension == t.dimension
}

func (c *converter) Convert(value float64, from, to string) (float64, error) {
	if strings.EqualFold(from, to) {
		return value, nil
	}

	f, ok := c.lookup(from)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, from)
	}
	t, ok := c.lookup(to)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, to)
	}
	if f.dimension != t.dimension {
		return 0, fmt.Errorf("%w: %s (%s) to %s (%s)", ErrIncompatibleUnits, from, f.dimension, to, t.dimension)
	}

	return value * f.factor / t.factor, nil
}

const (
	squareMetresPerHectare = 10000.0
	squareMetresPerAcre    = 4046.8564224
	cubicMetresPerLitre    = 0.001
	cubicMetresPerGallon   = 0.003785411784
	kilogramsPerPound      = 0.45359237
)

var unitTable map[string]unit = map[string]unit{
	"mm": {"length", 0.001},
	"cm": {"length", 0.01},
	"m":  {"length", 1},
	"km": {"length", 1000},
	"in": {"length", 0.0254},
	"ft": {"length", 0.3048},
	"mi": {"length", 1609.344},

	"m2":  {"area", 1},
	"ha":  {"area", squareMetresPerHectare},
	"ac":  {"area", squareMetresPerAcre},
	"ft2": {"area", 0.09290304},

	"ml":  {"volume", cubicMetresPerLitre / 1000},
	"l":   {"volume", cubicMetresPerLitre},
	"m3":  {"volume", 1},
	"gal": {"volume", cubicMetresPerGallon},

	"g":  {"mass", 0.001},
	"kg": {"mass", 1},
	"t":  {"mass", 1000},
	"lb": {"mass", kilogramsPerPound},

	"l1ha-1":   {"volume-per-area", cubicMetresPerLitre / squareMetresPerHectare},
	"ml1m-2":   {"volume-per-area", cubicMetresPerLitre / 1000},
	"m31ha-1":  {"volume-per-area", 1 / squareMetresPerHectare},
	"gal1ac-1": {"volume-per-area", cubicMetresPerGallon / squareMetresPerAcre},

	"kg1ha-1": {"mass-per-area", 1 / squareMetresPerHectare},
	"t1ha-1":  {"mass-per-area", 1000 / squareMetresPerHectare},
	"g1m-2":   {"mass-per-area", 0.001},
	"lb1ac-1": {"mass-per-area", kilogramsPerPound / squareMetresPerAcre},

	"seeds1m-2":  {"count-per-area", 1},
	"seeds1ha-1": {"count-per-area", 1 / squareMetresPerHectare},
	"seeds1ac-1": {"count-per-area", 1 / squareMetresPerAcre},

	"l1s-1":   {"volume-per-time", cubicMetresPerLitre},
	"l1min-1": {"volume-per-time", cubicMetresPerLitre / 60},
	"l1hr-1":  {"volume-per-time", cubicMetresPerLitre / 3600},

	"kg1s-1": {"mass-per-time", 1},
	"t1hr-1": {"mass-per-time", 1000.0 / 3600},

	"m1s-1":   {"speed", 1},
	"km1hr-1": {"speed", 1000.0 / 3600},
	"mi1hr-1": {"speed", 1609.344 / 3600},

	"arcdeg": {"angle", 1},
	"rad":    {"angle", 57.29577951308232},

	"prcnt": {"ratio", 0.01},
	"ratio": {"ratio", 1},

	"count": {"count", 1},

	"s":   {"time", 1},
	"min": {"time", 60},
	"hr":  {"time", 3600},
}
