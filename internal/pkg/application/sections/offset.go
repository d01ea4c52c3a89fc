package sections

import "github.com/diwise/integration-coverage/domain"

// Offset is a 3-axis displacement in metres. Inline is positive in the
// direction of travel, lateral positive to the right and vertical positive
// up. A nil axis is unreported and counts as zero when offsets are combined.
type Offset struct {
	Inline   *float64 `json:"inline,omitempty"`
	Lateral  *float64 `json:"lateral,omitempty"`
	Vertical *float64 `json:"vertical,omitempty"`
}

// NewOffset returns an offset with all three axes reported.
func NewOffset(inline, lateral, vertical float64) Offset {
	return Offset{Inline: &inline, Lateral: &lateral, Vertical: &vertical}
}

func offsetFromDomain(o *domain.Offset) Offset {
	if o == nil {
		return Offset{}
	}
	return Offset{
		Inline:   copyOf(o.Inline),
		Lateral:  copyOf(o.Lateral),
		Vertical: copyOf(o.Vertical),
	}
}

// Add returns the axis-wise sum of o and other. An axis stays unreported only
// when it is unreported on both sides.
func (o Offset) Add(other Offset) Offset {
	return Offset{
		Inline:   addAxis(o.Inline, other.Inline),
		Lateral:  addAxis(o.Lateral, other.Lateral),
		Vertical: addAxis(o.Vertical, other.Vertical),
	}
}

// WithReversedInline returns o with the sign of its inline axis flipped.
func (o Offset) WithReversedInline() Offset {
	if o.Inline == nil {
		return o
	}
	reversed := -*o.Inline
	o.Inline = &reversed
	return o
}

func (o Offset) InlineM() float64   { return valueOrZero(o.Inline) }
func (o Offset) LateralM() float64  { return valueOrZero(o.Lateral) }
func (o Offset) VerticalM() float64 { return valueOrZero(o.Vertical) }

// Compose folds any number of offsets with Add.
func Compose(offsets ...Offset) Offset {
	result := Offset{}
	for _, o := range offsets {
		result = result.Add(o)
	}
	return result
}

func addAxis(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	sum := valueOrZero(a) + valueOrZero(b)
	return &sum
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func copyOf(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
