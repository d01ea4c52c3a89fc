package units

import (
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"
)

func TestConvertVolumeRates(t *testing.T) {
	is := is.New(t)
	c := New()

	v, err := c.Convert(100, "l1ha-1", "gal1ac-1")
	is.NoErr(err)
	is.True(math.Abs(v-10.6907) < 0.001) // 100 l/ha is about 10.69 gal/ac
}

func TestConvertIsCaseInsensitive(t *testing.T) {
	is := is.New(t)
	c := New()

	v, err := c.Convert(2.5, "HA", "m2")
	is.NoErr(err)
	is.Equal(v, 25000.0)
}

func TestConvertSameUnitIsIdentity(t *testing.T) {
	is := is.New(t)
	c := New()

	v, err := c.Convert(3.14, "whatever", "whatever")
	is.NoErr(err)
	is.Equal(v, 3.14)
	is.True(c.CanConvert("bu1ac-1", "BU1AC-1")) // agrees with Convert for codes outside the table
}

func TestConvertFailsAcrossDimensions(t *testing.T) {
	is := is.New(t)
	c := New()

	_, err := c.Convert(1, "kg1ha-1", "l1ha-1")
	is.True(errors.Is(err, ErrIncompatibleUnits))
	is.True(!c.CanConvert("kg1ha-1", "l1ha-1"))
}

func TestConvertFailsForUnknownUnit(t *testing.T) {
	is := is.New(t)
	c := New()

	_, err := c.Convert(1, "furlong", "m")
	is.True(errors.Is(err, ErrUnknownUnit))
	is.True(!c.CanConvert("furlong", "m"))
}
