package sections

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/diwise/integration-coverage/domain"
	"github.com/diwise/integration-coverage/internal/pkg/application/units"
	"github.com/matryer/is"
)

func TestResolveHierarchyProducesOneSectionPerLeaf(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	is.Equal(len(sections), 2)
	is.Equal(len(userVisible(diags)), 1) // only the seed rate unit problem is reported

	left := sections[0]
	is.Equal(left.Description, "Boom left")
	is.Equal(left.Width, 3.0)
	is.Equal(left.Offset.InlineM(), -0.3)
	is.Equal(left.Offset.LateralM(), -1.5)
	is.True(left.Engagement != nil)
	is.Equal(left.Engagement.Code, "dtRecordingStatus")

	right := sections[1]
	is.Equal(right.Description, "Boom right")
	is.Equal(right.Offset.LateralM(), 1.5)
}

func TestResolveHierarchyInheritsAncestorChannelsOnce(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	left := sections[0]
	is.Equal(len(left.Channels), 2)

	total, ok := left.Channels["vrTotalVolume"]
	is.True(ok)
	is.Equal(total.Factor, 0.5) // 6 m implement total applied to a 3 m section

	rate := left.Channels["vrAppRateVolumeActual"]
	is.Equal(rate.Factor, 1.0)
	is.Equal(rate.Channel.UnitCode, "l1ha-1") // own channel wins over the implement's

	right := sections[1]
	rate = right.Channels["vrAppRateVolumeActual"]
	is.Equal(rate.Channel.UnitCode, "gal1ac-1") // inherited from the implement
	is.Equal(rate.Factor, 1.0)                  // rates are not factored
}

func TestResolveHierarchyDropsIncompatibleChannelWithOneDiagnostic(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	for _, s := range sections {
		_, ok := s.Channels["vrSeedRate"]
		is.True(!ok)
	}

	visible := userVisible(diags)
	is.Equal(len(visible), 1)
	is.Equal(visible[0].Kind, UnitIncompatible)
	is.Equal(visible[0].Channel, "vrSeedRate")
}

func TestResolveHierarchyPrefersConfigurationWithTelemetry(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	catalog.DeviceConfigurations = append(catalog.DeviceConfigurations, domain.DeviceConfiguration{
		ID:           "cfg-sprayer-2019",
		DeviceNodeID: "sprayer",
		Type:         domain.ConfigurationTypeImplement,
		Width:        floatPtr(12),
	})

	sections, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	is.Equal(len(sections), 2)
	is.Equal(sections[0].Channels["vrTotalVolume"].Factor, 0.5) // declared width of the live 6 m configuration
}

func TestResolveHierarchySkipsAmbiguousLevelWithoutTelemetry(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	catalog.DeviceConfigurations = append(catalog.DeviceConfigurations, domain.DeviceConfiguration{
		ID:           "cfg-sprayer-2019",
		DeviceNodeID: "sprayer",
		Type:         domain.ConfigurationTypeImplement,
		Width:        floatPtr(12),
	})
	op := catalog.Operations[0]
	op.DeviceElementUses[1].Channels = nil // the sprayer use no longer reports anything

	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(op)

	is.Equal(len(sections), 2)
	_, ok := sections[0].Channels["vrTotalVolume"]
	is.True(!ok)

	gaps := 0
	for _, d := range diags {
		if d.Kind == ResolutionGap && d.ElementID == "sprayer" {
			gaps++
		}
	}
	is.Equal(gaps, 2) // one per leaf walking through the ambiguous level
}

func TestResolveKeepsChannelWithIdenticalUnknownUnit(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	catalog.TypeMappings = append(catalog.TypeMappings, domain.TypeMapping{
		SourceCode: "vrYieldVolumePerArea", TargetCode: "YieldRate", TargetUnit: "bu1ac-1",
	})
	op := catalog.Operations[0]
	op.DeviceElementUses[1].Channels = append(op.DeviceElementUses[1].Channels,
		domain.SensorChannel{Code: "vrYieldVolumePerArea", UnitCode: "bu1ac-1"})

	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(op)

	for _, d := range userVisible(diags) {
		is.True(d.Channel != "vrYieldVolumePerArea") // no unit diagnostic for an identity conversion
	}
	yield, ok := sections[0].Channels["vrYieldVolumePerArea"]
	is.True(ok)
	is.Equal(yield.TargetUnit, "bu1ac-1")

	rec := domain.SpatialRecord{Values: map[string]domain.RecordValue{
		"vrYieldVolumePerArea": {Number: floatPtr(42), Unit: "bu1ac-1"},
	}}
	readings := sections[0].Values(rec, units.New())
	is.True(readings[len(readings)-1].Present)
	is.Equal(readings[len(readings)-1].Value, 42.0)
}

func TestResolveHierarchyInheritsMachineChannels(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	catalog.DeviceNodes[1].ParentID = "tractor" // sprayer hitched to the tractor
	op := catalog.Operations[0]
	op.DeviceElementUses[0].Channels = []domain.SensorChannel{
		{Code: "dtRecordingStatus", Enumerated: true},
		{Code: "vrTotalVolume", UnitCode: "l"},
	}
	op.DeviceElementUses[3].Channels = nil // right boom reports nothing itself

	sections, _ := newResolverForTesting(catalog, Options{}).Resolve(op)

	is.Equal(len(sections), 2)
	right := sections[1]
	is.True(right.Engagement != nil)
	is.Equal(right.Engagement.Code, "dtRecordingStatus") // inherited from the tractor
	is.Equal(right.Channels["vrTotalVolume"].Factor, 0.5) // the nearer sprayer level wins the key
	is.Equal(right.Offset.InlineM(), -0.3)                // machine level adds no offset
}

func TestResolveDropsLeafWithMissingConfiguration(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	op := catalog.Operations[0]
	op.DeviceElementUses[3].DeviceConfigurationID = "cfg-does-not-exist"

	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(op)

	is.Equal(len(sections), 1)
	is.Equal(sections[0].Description, "Boom left")
	is.Equal(sections[0].Width, 3.0)
	is.Equal(len(userVisible(diags)), 1)
}

func TestResolveWithGNSSReceiverPositionFoldsHitchGeometry(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, _ := newResolverForTesting(catalog, Options{Position: GNSSReceiver}).Resolve(catalog.Operations[0])

	left := sections[0]
	// section -0.3, receiver 1.2, vehicle hitch -2.0, reference -1.5, implement hitch 0.5 reversed
	is.True(math.Abs(left.Offset.InlineM()-(-3.1)) < 1e-9)
	is.Equal(left.Offset.LateralM(), -1.5)
	is.Equal(left.Offset.VerticalM(), 3.1)
}

func TestResolveAssignsDefaultWidthToZeroWidthSections(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	for i := range catalog.DeviceConfigurations {
		if catalog.DeviceConfigurations[i].Type == domain.ConfigurationTypeSection {
			catalog.DeviceConfigurations[i].SectionWidth = nil
		}
	}

	sections, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	is.Equal(len(sections), 2)
	for _, s := range sections {
		is.Equal(s.Width, DefaultTotalWidth/2)
	}
	is.Equal(sections[0].Channels["vrTotalVolume"].Factor, 2.5/6.0) // scaled against the default width
}

func TestResolveFixedLevelsUsesThirdLevelElements(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, _ := newResolverForTesting(catalog, Options{Topology: MachineImplementSection}).Resolve(catalog.Operations[0])

	is.Equal(len(sections), 2)
	is.Equal(sections[0].Description, "Boom left")
	is.Equal(sections[0].Channels["vrTotalVolume"].Factor, 0.5)
	is.Equal(sections[1].Channels["vrAppRateVolumeActual"].Channel.UnitCode, "gal1ac-1")
}

func TestResolveFixedLevelsFallsBackToImplementAsSection(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	op := catalog.Operations[0]
	op.DeviceElementUses = op.DeviceElementUses[:2] // tractor and sprayer only

	sections, _ := newResolverForTesting(catalog, Options{Topology: MachineImplementSection}).Resolve(op)

	is.Equal(len(sections), 1)
	is.Equal(sections[0].Description, "Sprayer")
	is.Equal(sections[0].Width, 6.0)
	is.Equal(sections[0].Channels["vrTotalVolume"].Factor, 1.0) // own channel, no scaling
	is.True(sections[0].Engagement == nil)
}

func TestResolveEmptyOperationIsValid(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, diags := newResolverForTesting(catalog, Options{}).Resolve(domain.Operation{ID: "op-empty"})

	is.Equal(len(sections), 0)
	is.Equal(len(diags), 1)
	is.Equal(diags[0].Kind, NoSections)
}

func TestSectionIdentityIsDeterministic(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	first, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])
	second, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])

	is.Equal(first[0].ID, second[0].ID)
	is.True(first[0].ID != first[1].ID)
}

func TestSectionValuesAreConvertedScaledAndOrdered(t *testing.T) {
	is := is.New(t)

	catalog := loadCatalog(is, sprayerCatalog)
	sections, _ := newResolverForTesting(catalog, Options{}).Resolve(catalog.Operations[0])
	left := sections[0]

	rec := domain.SpatialRecord{
		Timestamp: time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC),
		Longitude: 17.3,
		Latitude:  62.4,
		Values: map[string]domain.RecordValue{
			"vrAppRateVolumeActual": {Number: floatPtr(100), Unit: "l1ha-1"},
			"vrTotalVolume":         {Number: floatPtr(12000), Unit: "ml"},
			"dtRecordingStatus":     {Text: "On"},
		},
	}

	ordered := left.OrderedChannels()
	is.Equal(ordered[0].Key, "vrAppRateVolumeActual")
	is.Equal(ordered[1].Key, "vrTotalVolume")

	readings := left.Values(rec, units.New())
	is.Equal(len(readings), 2)
	is.True(readings[0].Present)
	is.True(math.Abs(readings[0].Value-100) < 1e-9)
	is.True(readings[1].Present)
	is.True(math.Abs(readings[1].Value-6) < 1e-9) // 12 l converted, then halved for the 3 m section

	delete(rec.Values, "vrTotalVolume")
	readings = left.Values(rec, units.New())
	is.True(!readings[1].Present)
}

func TestSectionEngagement(t *testing.T) {
	is := is.New(t)

	engagement := domain.SensorChannel{Code: "dtRecordingStatus", Enumerated: true}
	s := SectionDefinition{Engagement: &engagement}

	on := domain.SpatialRecord{Values: map[string]domain.RecordValue{"dtRecordingStatus": {Text: "on"}}}
	off := domain.SpatialRecord{Values: map[string]domain.RecordValue{"dtRecordingStatus": {Text: "Off"}}}
	missing := domain.SpatialRecord{}

	is.True(s.Engaged(on))
	is.True(!s.Engaged(off))
	is.True(!s.Engaged(missing))
	is.True(SectionDefinition{}.Engaged(missing)) // no engagement channel means always working
}

func TestScaleFactor(t *testing.T) {
	is := is.New(t)

	is.Equal(ScaleFactor(true, 12, 3), 0.25)
	is.Equal(ScaleFactor(false, 12, 3), 1.0)
	is.Equal(ScaleFactor(true, 3.0005, 3), 1.0) // within epsilon
	is.Equal(ScaleFactor(true, 0, 3), 1.0)
}

func newResolverForTesting(c domain.Catalog, opts Options) *Resolver {
	catalog, _ := NewCatalog(c)
	return NewResolver(catalog, NewTypeMappings(c.TypeMappings), units.New(), opts)
}

func loadCatalog(is *is.I, s string) domain.Catalog {
	c := domain.Catalog{}
	err := json.Unmarshal([]byte(s), &c)
	is.NoErr(err)
	return c
}

func userVisible(diags []Diagnostic) []Diagnostic {
	visible := []Diagnostic{}
	for _, d := range diags {
		if d.UserVisible() {
			visible = append(visible, d)
		}
	}
	return visible
}

func floatPtr(f float64) *float64 {
	return &f
}

const sprayerCatalog string = `{
  "deviceNodes": [
    { "id": "tractor", "description": "Tractor", "serialNumber": "T-1" },
    { "id": "sprayer", "description": "Sprayer", "serialNumber": "S-77" },
    { "id": "boom-left", "parentId": "sprayer", "description": "Boom left" },
    { "id": "boom-right", "parentId": "sprayer", "description": "Boom right" }
  ],
  "deviceConfigurations": [
    {
      "id": "cfg-tractor", "deviceNodeId": "tractor", "type": "machine",
      "gnssReceiverOffset": { "inline": 1.2, "lateral": 0, "vertical": 3.1 },
      "hitchOffset": { "inline": -2.0 }
    },
    {
      "id": "cfg-sprayer", "deviceNodeId": "sprayer", "type": "implement",
      "width": 6,
      "offsets": [ { "name": "referencePoint", "offset": { "inline": -1.5 } } ],
      "hitchOffset": { "inline": 0.5 }
    },
    { "id": "cfg-left", "deviceNodeId": "boom-left", "type": "section", "sectionWidth": 3, "inlineOffset": -0.3, "lateralOffset": -1.5 },
    { "id": "cfg-right", "deviceNodeId": "boom-right", "type": "section", "sectionWidth": 3, "inlineOffset": -0.3, "lateralOffset": 1.5 }
  ],
  "operations": [
    {
      "id": "op-1",
      "deviceElementUses": [
        { "id": "use-tractor", "deviceConfigurationId": "cfg-tractor", "depth": 0, "order": 0, "channels": [] },
        {
          "id": "use-sprayer", "deviceConfigurationId": "cfg-sprayer", "depth": 0, "order": 1,
          "channels": [
            { "code": "vrTotalVolume", "unitCode": "l" },
            { "code": "vrAppRateVolumeActual", "unitCode": "gal1ac-1" },
            { "code": "vrSeedRate", "unitCode": "seeds1ha-1" },
            { "code": "vrUnmapped", "unitCode": "m" }
          ]
        },
        {
          "id": "use-left", "deviceConfigurationId": "cfg-left", "depth": 1, "order": 0,
          "channels": [
            { "code": "dtRecordingStatus", "enumerated": true },
            { "code": "vrAppRateVolumeActual", "unitCode": "l1ha-1" }
          ]
        },
        {
          "id": "use-right", "deviceConfigurationId": "cfg-right", "depth": 1, "order": 1,
          "channels": [
            { "code": "dtRecordingStatus", "enumerated": true }
          ]
        }
      ]
    }
  ],
  "typeMappings": [
    { "sourceCode": "vrTotalVolume", "targetCode": "TotalVolume", "targetUnit": "l", "shouldFactor": true, "multiProduct": false },
    { "sourceCode": "vrAppRateVolumeActual", "targetCode": "AppliedRate", "targetUnit": "l1ha-1", "shouldFactor": false, "multiProduct": true },
    { "sourceCode": "vrSeedRate", "targetCode": "SeedRate", "targetUnit": "l1ha-1", "shouldFactor": false, "multiProduct": false }
  ]
}`
