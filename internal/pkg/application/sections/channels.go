package sections

import (
	"math"

	"github.com/diwise/integration-coverage/domain"
)

// widthEpsilon is the difference in metres below which a declared width is
// considered equal to the section width.
const widthEpsilon = 0.001

// TypeMappings maps source sensor codes to their target representation.
type TypeMappings map[string]domain.TypeMapping

func NewTypeMappings(mappings []domain.TypeMapping) TypeMappings {
	tm := make(TypeMappings, len(mappings))
	for _, m := range mappings {
		tm[m.SourceCode] = m
	}
	return tm
}

func (tm TypeMappings) Lookup(code string) (domain.TypeMapping, bool) {
	m, ok := tm[code]
	return m, ok
}

// ChannelKey is the key a channel's values are stored under in a
// SpatialRecord. Multi-product channels that name a product get one key per
// product.
func ChannelKey(ch domain.SensorChannel, mapping domain.TypeMapping) string {
	if mapping.MultiProduct && ch.ProductID != "" {
		return ch.Code + "#" + ch.ProductID
	}
	return ch.Code
}

// ScaledChannel is a sensor channel together with the factor applied to its
// converted values.
type ScaledChannel struct {
	Key        string               `json:"key"`
	Channel    domain.SensorChannel `json:"channel"`
	TargetCode string               `json:"targetCode"`
	TargetUnit string               `json:"targetUnit,omitempty"`
	Factor     float64              `json:"factor"`
}

// ScaleFactor returns the multiplier for a channel declared across
// declaredWidth when applied to a section sectionWidth wide. Only channels
// that report an aggregate over their width are scaled.
func ScaleFactor(shouldFactor bool, declaredWidth, sectionWidth float64) float64 {
	if !shouldFactor || declaredWidth <= 0 || sectionWidth <= 0 {
		return 1.0
	}
	if math.Abs(declaredWidth-sectionWidth) <= widthEpsilon {
		return 1.0
	}
	return sectionWidth / declaredWidth
}

// candidateChannel is a channel accepted during resolution whose factor is
// only known once the section width is final.
type candidateChannel struct {
	key           string
	channel       domain.SensorChannel
	mapping       domain.TypeMapping
	declaredWidth float64
	inherited     bool
}

func (c candidateChannel) scaled(sectionWidth float64) ScaledChannel {
	factor := 1.0
	if c.inherited {
		factor = ScaleFactor(c.mapping.ShouldFactor, c.declaredWidth, sectionWidth)
	}
	return ScaledChannel{
		Key:        c.key,
		Channel:    c.channel,
		TargetCode: c.mapping.TargetCode,
		TargetUnit: c.mapping.TargetUnit,
		Factor:     factor,
	}
}
