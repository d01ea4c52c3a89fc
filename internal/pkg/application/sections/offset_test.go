package sections

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

func TestOffsetCompositionIsOrderIndependent(t *testing.T) {
	is := is.New(t)

	inline := 0.7
	lateral := -2.25
	offsets := []Offset{
		NewOffset(1.2, 0, 3.1),
		{Inline: &inline},
		{Lateral: &lateral},
		NewOffset(-0.5, 1.5, 0.0001),
		{},
	}

	reference := Compose(offsets...)

	for _, perm := range permutations(len(offsets)) {
		ordered := make([]Offset, 0, len(offsets))
		for _, i := range perm {
			ordered = append(ordered, offsets[i])
		}
		got := Compose(ordered...)

		is.True(math.Abs(got.InlineM()-reference.InlineM()) < 1e-12)
		is.True(math.Abs(got.LateralM()-reference.LateralM()) < 1e-12)
		is.True(math.Abs(got.VerticalM()-reference.VerticalM()) < 1e-12)
	}

	// (a+b)+c == a+(b+c)
	left := offsets[0].Add(offsets[1]).Add(offsets[3])
	right := offsets[0].Add(offsets[1].Add(offsets[3]))
	is.True(math.Abs(left.InlineM()-right.InlineM()) < 1e-12)
	is.True(math.Abs(left.LateralM()-right.LateralM()) < 1e-12)
}

func TestOffsetUnreportedAxesStayUnreported(t *testing.T) {
	is := is.New(t)

	inline := 2.0
	sum := Offset{Inline: &inline}.Add(Offset{})

	is.Equal(*sum.Inline, 2.0)
	is.True(sum.Lateral == nil)  // lateral is unreported on both sides
	is.True(sum.Vertical == nil) // vertical is unreported on both sides
}

func TestOffsetWithReversedInline(t *testing.T) {
	is := is.New(t)

	o := NewOffset(1.5, 0.25, 0)
	r := o.WithReversedInline()

	is.Equal(r.InlineM(), -1.5)
	is.Equal(r.LateralM(), 0.25)
	is.Equal(o.InlineM(), 1.5) // original is left untouched
	is.True(Offset{}.WithReversedInline().Inline == nil)
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	result := [][]int{}
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			perm := make([]int, 0, n)
			perm = append(perm, p[:i]...)
			perm = append(perm, n-1)
			perm = append(perm, p[i:]...)
			result = append(result, perm)
		}
	}
	return result
}
