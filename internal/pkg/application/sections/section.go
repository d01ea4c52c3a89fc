package sections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diwise/integration-coverage/domain"
	"github.com/google/uuid"
)

// DefaultTotalWidth is shared equally among sections that report no width.
const DefaultTotalWidth = 5.0

// sectionNamespace scopes the name-based UUIDs of section definitions.
var sectionNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("integration-coverage/section"))

// SectionDefinition is one resolved ground-engaging unit. It is immutable
// once returned from a Resolver.
type SectionDefinition struct {
	ID                    uuid.UUID                `json:"id"`
	OperationID           string                   `json:"operationId"`
	DeviceElementUseID    string                   `json:"deviceElementUseId"`
	DeviceConfigurationID string                   `json:"deviceConfigurationId"`
	Description           string                   `json:"description"`
	SerialNumber          string                   `json:"serialNumber,omitempty"`
	Offset                Offset                   `json:"offset"`
	Width                 float64                  `json:"width"`
	Engagement            *domain.SensorChannel    `json:"engagement,omitempty"`
	Channels              map[string]ScaledChannel `json:"-"`
}

// OrderedChannels returns the section's channels sorted by key. Columnar
// outputs rely on this order.
func (s SectionDefinition) OrderedChannels() []ScaledChannel {
	keys := make([]string, 0, len(s.Channels))
	for k := range s.Channels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]ScaledChannel, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, s.Channels[k])
	}
	return ordered
}

// Engaged reports whether the section is working in rec. Sections without an
// engagement channel are always engaged; a missing engagement value counts
// as not engaged.
func (s SectionDefinition) Engaged(rec domain.SpatialRecord) bool {
	if s.Engagement == nil {
		return true
	}

	v, ok := rec.Values[s.Engagement.Code]
	if !ok {
		return false
	}
	if v.Text != "" {
		return strings.EqualFold(v.Text, "on")
	}
	return v.Number != nil && *v.Number == 1
}

// GroundOffset and SwathWidth expose the geometry the coverage synthesizer
// needs.
func (s SectionDefinition) GroundOffset() (inline, lateral float64) {
	return s.Offset.InlineM(), s.Offset.LateralM()
}

func (s SectionDefinition) SwathWidth() float64 {
	return s.Width
}

// Reading is one converted channel value. Present is false when the record
// carried no value for the channel or it could not be converted.
type Reading struct {
	Value   float64
	Present bool
}

// Values extracts the section's channel values from rec, aligned to
// OrderedChannels.
func (s SectionDefinition) Values(rec domain.SpatialRecord, conv UnitConverter) []Reading {
	ordered := s.OrderedChannels()
	readings := make([]Reading, len(ordered))

	for i, ch := range ordered {
		v, ok := rec.Values[ch.Key]
		if !ok || v.Number == nil {
			continue
		}

		value := *v.Number
		if ch.TargetUnit != "" {
			from := v.Unit
			if from == "" {
				from = ch.Channel.UnitCode
			}
			converted, err := conv.Convert(value, from, ch.TargetUnit)
			if err != nil {
				continue
			}
			value = converted
		}

		readings[i] = Reading{Value: value * ch.Factor, Present: true}
	}

	return readings
}

func sectionID(s SectionDefinition) uuid.UUID {
	keys := make([]string, 0, len(s.Channels))
	for _, ch := range s.OrderedChannels() {
		keys = append(keys, ch.Key)
	}

	name := fmt.Sprintf("%s|%s|%s|%s|%g|%g|%g|%g|%s",
		s.OperationID,
		s.DeviceConfigurationID,
		s.Description,
		s.SerialNumber,
		s.Offset.InlineM(),
		s.Offset.LateralM(),
		s.Offset.VerticalM(),
		s.Width,
		strings.Join(keys, ","),
	)

	return uuid.NewSHA1(sectionNamespace, []byte(name))
}
