package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/diwise/integration-coverage/domain"
	"github.com/farshidtz/senml/v2"
)

const (
	LatitudeName  string = "lat"
	LongitudeName string = "lon"
	ElevationName string = "elevation"
)

// Decode reads a SenML JSON pack into spatial records, one per distinct
// timestamp, ordered by time. A record without a position keeps the (0,0)
// sentinel.
func Decode(b []byte) ([]domain.SpatialRecord, error) {
	pack := senml.Pack{}
	if err := json.Unmarshal(b, &pack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal senml pack: %s", err.Error())
	}

	return FromPack(pack)
}

// FromPack groups the resolved records of a pack by time. Base names are
// only used to scope a pack to an operation and are not part of channel keys.
func FromPack(pack senml.Pack) ([]domain.SpatialRecord, error) {
	byTime := map[float64]*domain.SpatialRecord{}
	order := []float64{}

	var baseTime, baseValue float64
	var baseUnit string

	for i, r := range pack {
		if r.BaseTime != 0 {
			baseTime = r.BaseTime
		}
		if r.BaseUnit != "" {
			baseUnit = r.BaseUnit
		}
		if r.BaseValue != nil {
			baseValue = *r.BaseValue
		}
		if r.Name == "" {
			continue
		}

		t := baseTime + r.Time
		if t <= 0 {
			return nil, fmt.Errorf("record %d (%s) has no absolute time", i, r.Name)
		}

		rec, ok := byTime[t]
		if !ok {
			rec = &domain.SpatialRecord{
				Timestamp: toTime(t),
				Values:    map[string]domain.RecordValue{},
			}
			byTime[t] = rec
			order = append(order, t)
		}

		unit := r.Unit
		if unit == "" {
			unit = baseUnit
		}

		switch strings.ToLower(r.Name) {
		case LatitudeName:
			if r.Value != nil {
				rec.Latitude = baseValue + *r.Value
			}
		case LongitudeName:
			if r.Value != nil {
				rec.Longitude = baseValue + *r.Value
			}
		case ElevationName:
			if r.Value != nil {
				v := baseValue + *r.Value
				rec.Elevation = &v
			}
		default:
			if r.Value != nil {
				v := baseValue + *r.Value
				rec.Values[r.Name] = domain.RecordValue{Number: &v, Unit: unit}
			} else if r.StringValue != "" {
				rec.Values[r.Name] = domain.RecordValue{Text: r.StringValue}
			} else if r.BoolValue != nil {
				rec.Values[r.Name] = domain.RecordValue{Text: onOff(*r.BoolValue)}
			}
		}
	}

	sort.Float64s(order)

	records := make([]domain.SpatialRecord, 0, len(order))
	for _, t := range order {
		records = append(records, *byTime[t])
	}

	return records, nil
}

// ToPack is the inverse of FromPack, used when replaying a stream to another
// consumer.
func ToPack(baseName string, records []domain.SpatialRecord) senml.Pack {
	pack := senml.Pack{}

	for i, rec := range records {
		t := float64(rec.Timestamp.UnixNano()) / 1e9

		lat, lon := rec.Latitude, rec.Longitude
		first := newRec(LatitudeName, &lat, "lat", t)
		if i == 0 {
			first.BaseName = baseName
		}
		pack = append(pack, first, newRec(LongitudeName, &lon, "lon", t))

		if rec.Elevation != nil {
			e := *rec.Elevation
			pack = append(pack, newRec(ElevationName, &e, "m", t))
		}

		keys := make([]string, 0, len(rec.Values))
		for k := range rec.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v := rec.Values[k]
			if v.Number != nil {
				n := *v.Number
				pack = append(pack, newRec(k, &n, v.Unit, t))
			} else {
				pack = append(pack, senml.Record{Name: k, StringValue: v.Text, Time: t})
			}
		}
	}

	return pack
}

func newRec(name string, v *float64, u string, t float64) senml.Record {
	return senml.Record{
		Name:  name,
		Value: v,
		Time:  t,
		Unit:  u,
	}
}

// onOff maps a boolean value to the enumerated form recording status
// channels use.
func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

func toTime(t float64) time.Time {
	sec, frac := math.Modf(t)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
