package geodesy

import "math"

// EarthRadiusM is the spherical earth radius used for every great-circle
// calculation in this package (metres).
const EarthRadiusM = 6378137.0

// Point is a geographic position in degrees.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// IsSentinel reports whether p is the (0,0) "no fix" value some receivers emit.
func (p Point) IsSentinel() bool {
	return p.Lon == 0 && p.Lat == 0
}

// IsValid reports whether both coordinates are finite.
func (p Point) IsValid() bool {
	return !math.IsNaN(p.Lon) && !math.IsNaN(p.Lat) && !math.IsInf(p.Lon, 0) && !math.IsInf(p.Lat, 0)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// Destination returns the point reached by travelling distanceM metres from
// origin along the initial bearing bearingDeg (clockwise from true north).
func Destination(origin Point, distanceM, bearingDeg float64) Point {
	delta := distanceM / EarthRadiusM
	theta := toRadians(bearingDeg)
	phi1 := toRadians(origin.Lat)
	lambda1 := toRadians(origin.Lon)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(sinPhi2)

	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return Point{
		Lon: normalizeLongitude(toDegrees(lambda2)),
		Lat: toDegrees(phi2),
	}
}

// Bearing returns the initial bearing from p1 to p2 in degrees, in the range
// (-180, 180]. Callers normalize to [0, 360) where they need to.
func Bearing(p1, p2 Point) float64 {
	phi1 := toRadians(p1.Lat)
	phi2 := toRadians(p2.Lat)
	dLambda := toRadians(p2.Lon - p1.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return toDegrees(math.Atan2(y, x))
}

// Distance returns the great-circle (haversine) distance between p1 and p2
// in metres.
func Distance(p1, p2 Point) float64 {
	phi1 := toRadians(p1.Lat)
	phi2 := toRadians(p2.Lat)
	dPhi := toRadians(p2.Lat - p1.Lat)
	dLambda := toRadians(p2.Lon - p1.Lon)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// NormalizeBearing maps any bearing in degrees onto [0, 360).
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg, 360)
	if b < 0 {
		b += 360
	}
	return b
}

func normalizeLongitude(lon float64) float64 {
	l := math.Mod(lon+540, 360) - 180
	if l == -180 && lon > 0 {
		return 180
	}
	return l
}
