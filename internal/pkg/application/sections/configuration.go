package sections

import (
	"fmt"
	"sort"

	"github.com/diwise/integration-coverage/domain"
)

// Configuration is one of MachineConfiguration, ImplementConfiguration or
// SectionConfiguration.
type Configuration interface {
	ConfigurationID() string
	DeviceNodeID() string
	isConfiguration()
}

type MachineConfiguration struct {
	ID                 string
	NodeID             string
	GNSSReceiverOffset Offset
	HitchOffset        Offset
}

type ImplementConfiguration struct {
	ID          string
	NodeID      string
	Width       float64
	Offsets     []NamedOffset
	HitchOffset Offset
}

type SectionConfiguration struct {
	ID     string
	NodeID string
	Width  float64
	Offset Offset
}

type NamedOffset struct {
	Name   string
	Offset Offset
}

func (c MachineConfiguration) ConfigurationID() string   { return c.ID }
func (c MachineConfiguration) DeviceNodeID() string      { return c.NodeID }
func (MachineConfiguration) isConfiguration()            {}
func (c ImplementConfiguration) ConfigurationID() string { return c.ID }
func (c ImplementConfiguration) DeviceNodeID() string    { return c.NodeID }
func (ImplementConfiguration) isConfiguration()          {}
func (c SectionConfiguration) ConfigurationID() string   { return c.ID }
func (c SectionConfiguration) DeviceNodeID() string      { return c.NodeID }
func (SectionConfiguration) isConfiguration()            {}

// ReferenceOffset is the sum of the implement's named offsets, i.e. the
// implement reference point relative to its hitch.
func (c ImplementConfiguration) ReferenceOffset() Offset {
	result := Offset{}
	for _, o := range c.Offsets {
		result = result.Add(o.Offset)
	}
	return result
}

// levelOffset is the displacement a configuration contributes when it is
// folded into a section along the device tree. Implement and machine
// geometry is only applied when positions are reported at the GNSS receiver.
func levelOffset(cfg Configuration) Offset {
	switch c := cfg.(type) {
	case SectionConfiguration:
		return c.Offset
	case ImplementConfiguration:
		return Offset{}
	case MachineConfiguration:
		return Offset{}
	default:
		panic(fmt.Sprintf("unexpected configuration type %T", cfg))
	}
}

// declaredWidth is the physical width a configuration spans, zero if unknown.
func declaredWidth(cfg Configuration) float64 {
	switch c := cfg.(type) {
	case SectionConfiguration:
		return c.Width
	case ImplementConfiguration:
		return c.Width
	case MachineConfiguration:
		return 0
	default:
		panic(fmt.Sprintf("unexpected configuration type %T", cfg))
	}
}

func configurationFromDomain(dc domain.DeviceConfiguration) (Configuration, error) {
	switch dc.Type {
	case domain.ConfigurationTypeMachine:
		return MachineConfiguration{
			ID:                 dc.ID,
			NodeID:             dc.DeviceNodeID,
			GNSSReceiverOffset: offsetFromDomain(dc.GNSSReceiverOffset),
			HitchOffset:        offsetFromDomain(dc.HitchOffset),
		}, nil
	case domain.ConfigurationTypeImplement:
		named := make([]NamedOffset, 0, len(dc.Offsets))
		for _, o := range dc.Offsets {
			named = append(named, NamedOffset{Name: o.Name, Offset: offsetFromDomain(&o.Offset)})
		}
		return ImplementConfiguration{
			ID:          dc.ID,
			NodeID:      dc.DeviceNodeID,
			Width:       valueOrZero(dc.Width),
			Offsets:     named,
			HitchOffset: offsetFromDomain(dc.HitchOffset),
		}, nil
	case domain.ConfigurationTypeSection:
		return SectionConfiguration{
			ID:     dc.ID,
			NodeID: dc.DeviceNodeID,
			Width:  valueOrZero(dc.SectionWidth),
			Offset: Offset{Inline: copyOf(dc.InlineOffset), Lateral: copyOf(dc.LateralOffset)},
		}, nil
	default:
		return nil, fmt.Errorf("configuration %s has unknown type %q", dc.ID, dc.Type)
	}
}

// Catalog is the read-only device tree a resolution pass works on.
type Catalog struct {
	nodes          map[string]domain.DeviceNode
	configurations map[string]Configuration
	byNode         map[string][]Configuration
}

// NewCatalog indexes the device tree. Configurations of unknown type are
// left out and reported as resolution gaps.
func NewCatalog(c domain.Catalog) (*Catalog, []Diagnostic) {
	catalog := &Catalog{
		nodes:          make(map[string]domain.DeviceNode, len(c.DeviceNodes)),
		configurations: make(map[string]Configuration, len(c.DeviceConfigurations)),
		byNode:         make(map[string][]Configuration),
	}

	for _, n := range c.DeviceNodes {
		catalog.nodes[n.ID] = n
	}

	diagnostics := []Diagnostic{}

	for _, dc := range c.DeviceConfigurations {
		cfg, err := configurationFromDomain(dc)
		if err != nil {
			diagnostics = append(diagnostics, Diagnostic{
				Kind:      ResolutionGap,
				ElementID: dc.ID,
				Message:   err.Error(),
			})
			continue
		}
		catalog.configurations[cfg.ConfigurationID()] = cfg
		catalog.byNode[cfg.DeviceNodeID()] = append(catalog.byNode[cfg.DeviceNodeID()], cfg)
	}

	for _, configs := range catalog.byNode {
		sort.Slice(configs, func(i, j int) bool {
			return configs[i].ConfigurationID() < configs[j].ConfigurationID()
		})
	}

	return catalog, diagnostics
}

func (c *Catalog) Node(id string) (domain.DeviceNode, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

func (c *Catalog) Configuration(id string) (Configuration, bool) {
	cfg, ok := c.configurations[id]
	return cfg, ok
}

// ConfigurationsFor returns every configuration bound to a node, ordered by ID.
func (c *Catalog) ConfigurationsFor(nodeID string) []Configuration {
	return c.byNode[nodeID]
}
