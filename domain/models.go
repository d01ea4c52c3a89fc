package domain

import "time"

type Catalog struct {
	DeviceNodes          []DeviceNode          `json:"deviceNodes"`
	DeviceConfigurations []DeviceConfiguration `json:"deviceConfigurations"`
	Operations           []Operation           `json:"operations"`
	TypeMappings         []TypeMapping         `json:"typeMappings"`
}

type DeviceNode struct {
	ID            string `json:"id"`
	ParentID      string `json:"parentId,omitempty"`
	DeviceModelID string `json:"deviceModelId,omitempty"`
	Description   string `json:"description"`
	SerialNumber  string `json:"serialNumber,omitempty"`
}

const (
	ConfigurationTypeMachine   string = "machine"
	ConfigurationTypeImplement string = "implement"
	ConfigurationTypeSection   string = "section"
)

// DeviceConfiguration is the wire form of a machine, implement or section
// configuration. Which fields are meaningful depends on Type.
type DeviceConfiguration struct {
	ID           string `json:"id"`
	DeviceNodeID string `json:"deviceNodeId"`
	Type         string `json:"type"`

	// machine
	GNSSReceiverOffset *Offset `json:"gnssReceiverOffset,omitempty"`

	// machine (vehicle hitch) and implement (implement hitch)
	HitchOffset *Offset `json:"hitchOffset,omitempty"`

	// implement
	Width   *float64      `json:"width,omitempty"`
	Offsets []NamedOffset `json:"offsets,omitempty"`

	// section
	SectionWidth  *float64 `json:"sectionWidth,omitempty"`
	InlineOffset  *float64 `json:"inlineOffset,omitempty"`
	LateralOffset *float64 `json:"lateralOffset,omitempty"`
}

// Offset values are metres. Inline is positive in the direction of travel,
// lateral positive to the right and vertical positive up.
type Offset struct {
	Inline   *float64 `json:"inline,omitempty"`
	Lateral  *float64 `json:"lateral,omitempty"`
	Vertical *float64 `json:"vertical,omitempty"`
}

type NamedOffset struct {
	Name   string `json:"name"`
	Offset Offset `json:"offset"`
}

type Operation struct {
	ID                string             `json:"id"`
	Description       string             `json:"description,omitempty"`
	DeviceElementUses []DeviceElementUse `json:"deviceElementUses"`
}

type DeviceElementUse struct {
	ID                    string          `json:"id"`
	DeviceConfigurationID string          `json:"deviceConfigurationId"`
	Depth                 int             `json:"depth"`
	Order                 int             `json:"order"`
	Channels              []SensorChannel `json:"channels"`
}

type SensorChannel struct {
	Code       string `json:"code"`
	UnitCode   string `json:"unitCode,omitempty"`
	Enumerated bool   `json:"enumerated,omitempty"`
	ProductID  string `json:"productId,omitempty"`
}

type TypeMapping struct {
	SourceCode   string `json:"sourceCode"`
	TargetCode   string `json:"targetCode"`
	TargetUnit   string `json:"targetUnit,omitempty"`
	ShouldFactor bool   `json:"shouldFactor"`
	MultiProduct bool   `json:"multiProduct"`
}

// SpatialRecord is one telemetry sample. Values are keyed by channel key,
// see SensorChannel.
type SpatialRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Longitude float64                `json:"longitude"`
	Latitude  float64                `json:"latitude"`
	Elevation *float64               `json:"elevation,omitempty"` // metres
	Values    map[string]RecordValue `json:"values"`
}

type RecordValue struct {
	Number *float64 `json:"number,omitempty"`
	Text   string   `json:"text,omitempty"`
	Unit   string   `json:"unit,omitempty"`
}
