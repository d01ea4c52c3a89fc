package sections

import (
	"fmt"
	"sort"

	"github.com/diwise/integration-coverage/domain"
)

type TopologyMode string

const (
	DeviceElementHierarchy  TopologyMode = "DeviceElementHierarchy"
	MachineImplementSection TopologyMode = "MachineImplementSection"
)

type PositionMode string

const (
	GNSSReceiver            PositionMode = "GNSSReceiver"
	ImplementReferencePoint PositionMode = "ImplementReferencePoint"
)

// DefaultEngagementCode is the recording status channel that switches a
// section on and off.
const DefaultEngagementCode = "dtRecordingStatus"

type UnitConverter interface {
	CanConvert(from, to string) bool
	Convert(value float64, from, to string) (float64, error)
}

type Options struct {
	Topology       TopologyMode
	Position       PositionMode
	EngagementCode string
}

type Resolver struct {
	catalog   *Catalog
	mappings  TypeMappings
	converter UnitConverter
	opts      Options
}

func NewResolver(catalog *Catalog, mappings TypeMappings, converter UnitConverter, opts Options) *Resolver {
	if opts.Topology == "" {
		opts.Topology = DeviceElementHierarchy
	}
	if opts.Position == "" {
		opts.Position = ImplementReferencePoint
	}
	if opts.EngagementCode == "" {
		opts.EngagementCode = DefaultEngagementCode
	}

	return &Resolver{
		catalog:   catalog,
		mappings:  mappings,
		converter: converter,
		opts:      opts,
	}
}

// Resolve flattens the device tree used by op into section definitions.
// An empty result is valid and means nothing could be resolved.
func (r *Resolver) Resolve(op domain.Operation) ([]SectionDefinition, []Diagnostic) {
	p := &pass{
		Resolver:     r,
		op:           op,
		usesByConfig: usesByConfiguration(op.DeviceElementUses),
		reported:     map[string]bool{},
	}

	var builders []*sectionBuilder
	switch r.opts.Topology {
	case MachineImplementSection:
		builders = p.resolveFixedLevels()
	default:
		builders = p.resolveHierarchy()
	}

	sections := finalize(builders)
	if len(sections) == 0 {
		p.diagnose(NoSections, "", "", "no sections could be resolved")
	}

	return sections, p.diagnostics
}

// pass holds the state of resolving a single operation.
type pass struct {
	*Resolver
	op           domain.Operation
	usesByConfig map[string][]domain.DeviceElementUse
	diagnostics  []Diagnostic
	reported     map[string]bool
}

func (p *pass) diagnose(kind DiagnosticKind, elementID, channel, message string) {
	p.diagnostics = append(p.diagnostics, Diagnostic{
		Kind:        kind,
		OperationID: p.op.ID,
		ElementID:   elementID,
		Channel:     channel,
		Message:     message,
	})
}

func (p *pass) resolveHierarchy() []*sectionBuilder {
	leaves := p.leafUses()
	builders := make([]*sectionBuilder, 0, len(leaves))

	for _, leaf := range leaves {
		cfg, node, ok := p.lookup(leaf)
		if !ok {
			continue
		}

		b := p.newBuilder(leaf, cfg, node)
		implement, _ := cfg.(ImplementConfiguration)
		hasImplement := b.isImplement

		for _, level := range p.ancestors(node) {
			ancestor, ok := pickConfiguration(level.candidates, p.usesByConfig)
			if !ok {
				p.diagnose(ResolutionGap, level.node.ID, "", "ambiguous configurations, none carries telemetry")
				continue
			}

			b.offset = b.offset.Add(levelOffset(ancestor))
			if use, ok := p.telemetryUse(ancestor); ok {
				p.addChannels(b, use, declaredWidth(ancestor), true)
			}

			if impl, ok := ancestor.(ImplementConfiguration); ok {
				// the outermost implement carries the hitch geometry
				implement = impl
				hasImplement = true
			}
		}

		if hasImplement {
			p.applySourcePosition(b, implement)
		}
		builders = append(builders, b)
	}

	return builders
}

func (p *pass) resolveFixedLevels() []*sectionBuilder {
	builders := []*sectionBuilder{}

	for _, implUse := range p.usesOfKind(isImplement) {
		cfg, node, ok := p.lookup(implUse)
		if !ok {
			continue
		}
		implement := cfg.(ImplementConfiguration)

		sectionUses := []domain.DeviceElementUse{}
		for _, use := range p.usesOfKind(isSection) {
			sectionCfg, ok := p.catalog.Configuration(use.DeviceConfigurationID)
			if !ok {
				continue
			}
			sectionNode, ok := p.catalog.Node(sectionCfg.DeviceNodeID())
			if ok && sectionNode.ParentID == node.ID {
				sectionUses = append(sectionUses, use)
			}
		}

		if len(sectionUses) == 0 {
			b := p.newBuilder(implUse, cfg, node)
			p.applySourcePosition(b, implement)
			builders = append(builders, b)
			continue
		}

		for _, use := range sectionUses {
			sectionCfg, sectionNode, ok := p.lookup(use)
			if !ok {
				continue
			}
			b := p.newBuilder(use, sectionCfg, sectionNode)
			b.offset = b.offset.Add(levelOffset(implement))
			p.addChannels(b, implUse, implement.Width, true)
			p.applySourcePosition(b, implement)
			builders = append(builders, b)
		}
	}

	return builders
}

// lookup resolves the configuration and node behind a use. Missing
// references drop the use.
func (p *pass) lookup(use domain.DeviceElementUse) (Configuration, domain.DeviceNode, bool) {
	cfg, ok := p.catalog.Configuration(use.DeviceConfigurationID)
	if !ok {
		p.diagnose(ResolutionGap, use.ID, "", fmt.Sprintf("configuration %s not found", use.DeviceConfigurationID))
		return nil, domain.DeviceNode{}, false
	}
	node, ok := p.catalog.Node(cfg.DeviceNodeID())
	if !ok {
		p.diagnose(ResolutionGap, use.ID, "", fmt.Sprintf("device node %s not found", cfg.DeviceNodeID()))
		return nil, domain.DeviceNode{}, false
	}
	return cfg, node, true
}

func (p *pass) newBuilder(use domain.DeviceElementUse, cfg Configuration, node domain.DeviceNode) *sectionBuilder {
	b := &sectionBuilder{
		operationID:     p.op.ID,
		useID:           use.ID,
		configurationID: cfg.ConfigurationID(),
		description:     node.Description,
		serialNumber:    node.SerialNumber,
		offset:          levelOffset(cfg),
		width:           declaredWidth(cfg),
		channels:        map[string]candidateChannel{},
	}
	_, b.isImplement = cfg.(ImplementConfiguration)

	p.addChannels(b, use, 0, false)
	return b
}

// addChannels folds the channels a use reports into b. Keys already present
// win, so channels nearer the section take precedence over ancestors.
func (p *pass) addChannels(b *sectionBuilder, use domain.DeviceElementUse, width float64, inherited bool) {
	for _, ch := range use.Channels {
		if ch.Enumerated {
			if ch.Code == p.opts.EngagementCode && b.engagement == nil {
				engagement := ch
				b.engagement = &engagement
			}
			continue
		}

		mapping, ok := p.mappings.Lookup(ch.Code)
		if !ok {
			continue
		}

		key := ChannelKey(ch, mapping)
		if _, exists := b.channels[key]; exists {
			continue
		}

		if mapping.TargetUnit != "" && !p.converter.CanConvert(ch.UnitCode, mapping.TargetUnit) {
			reportKey := key + "|" + ch.UnitCode
			if !p.reported[reportKey] {
				p.reported[reportKey] = true
				p.diagnose(UnitIncompatible, use.ID, key,
					fmt.Sprintf("cannot convert %q to %q", ch.UnitCode, mapping.TargetUnit))
			}
			continue
		}

		b.channels[key] = candidateChannel{
			key:           key,
			channel:       ch,
			mapping:       mapping,
			declaredWidth: width,
			inherited:     inherited,
		}
	}
}

// applySourcePosition moves the section from the implement reference point to
// the GNSS receiver when that is where positions were recorded. Hitch points
// are defined from the implement's perspective, hence the reversed inline.
func (p *pass) applySourcePosition(b *sectionBuilder, implement ImplementConfiguration) {
	if p.opts.Position != GNSSReceiver {
		return
	}

	machine, ok := p.machineConfiguration()
	if !ok {
		p.diagnose(ResolutionGap, b.useID, "", "no machine configuration for GNSS receiver offset")
		return
	}

	b.offset = Compose(
		b.offset,
		machine.GNSSReceiverOffset,
		machine.HitchOffset,
		implement.ReferenceOffset(),
		implement.HitchOffset.WithReversedInline(),
	)
}

func (p *pass) machineConfiguration() (MachineConfiguration, bool) {
	machines := p.usesOfKind(isMachine)
	if len(machines) == 0 {
		return MachineConfiguration{}, false
	}
	cfg, _ := p.catalog.Configuration(machines[0].DeviceConfigurationID)
	return cfg.(MachineConfiguration), true
}

// leafUses are the deepest uses of the operation, machines excluded.
func (p *pass) leafUses() []domain.DeviceElementUse {
	uses := sortedUses(p.op.DeviceElementUses)
	candidates := []domain.DeviceElementUse{}
	maxDepth := -1

	for _, use := range uses {
		if cfg, ok := p.catalog.Configuration(use.DeviceConfigurationID); ok && isMachine(cfg) {
			continue
		}
		if use.Depth > maxDepth {
			maxDepth = use.Depth
		}
		candidates = append(candidates, use)
	}

	leaves := []domain.DeviceElementUse{}
	for _, use := range candidates {
		if use.Depth == maxDepth {
			leaves = append(leaves, use)
		}
	}
	return leaves
}

func (p *pass) usesOfKind(match func(Configuration) bool) []domain.DeviceElementUse {
	result := []domain.DeviceElementUse{}
	for _, use := range sortedUses(p.op.DeviceElementUses) {
		if cfg, ok := p.catalog.Configuration(use.DeviceConfigurationID); ok && match(cfg) {
			result = append(result, use)
		}
	}
	return result
}

// telemetryUse picks the use bound to cfg whose channels are folded into
// descendants: the first one reporting any channel.
func (p *pass) telemetryUse(cfg Configuration) (domain.DeviceElementUse, bool) {
	for _, use := range p.usesByConfig[cfg.ConfigurationID()] {
		if len(use.Channels) > 0 {
			return use, true
		}
	}
	return domain.DeviceElementUse{}, false
}

type ancestorLevel struct {
	node       domain.DeviceNode
	candidates []Configuration
}

// ancestors lists the levels above node, nearest first. The walk stops at a
// missing parent or a cycle. Machines are included so that channels they
// report, such as recording status, reach the sections below them; their
// level offset is zero and their channels are never scaled.
func (p *pass) ancestors(node domain.DeviceNode) []ancestorLevel {
	levels := []ancestorLevel{}
	visited := map[string]bool{node.ID: true}

	for parentID := node.ParentID; parentID != ""; {
		if visited[parentID] {
			p.diagnose(ResolutionGap, parentID, "", "device tree contains a cycle")
			break
		}
		visited[parentID] = true

		parent, ok := p.catalog.Node(parentID)
		if !ok {
			p.diagnose(ResolutionGap, parentID, "", "parent device node not found")
			break
		}

		candidates := p.catalog.ConfigurationsFor(parent.ID)
		if len(candidates) > 0 {
			levels = append(levels, ancestorLevel{node: parent, candidates: candidates})
		}

		parentID = parent.ParentID
	}

	return levels
}

// pickConfiguration chooses the configuration of an ancestor level. A single
// candidate is used as is. Among several, only those referenced by a use
// carrying telemetry in this operation qualify, and the lowest ID wins.
func pickConfiguration(candidates []Configuration, usesByConfig map[string][]domain.DeviceElementUse) (Configuration, bool) {
	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		return candidates[0], true
	}

	var picked Configuration
	for _, cfg := range candidates {
		live := false
		for _, use := range usesByConfig[cfg.ConfigurationID()] {
			if len(use.Channels) > 0 {
				live = true
				break
			}
		}
		if live && (picked == nil || cfg.ConfigurationID() < picked.ConfigurationID()) {
			picked = cfg
		}
	}

	return picked, picked != nil
}

func isMachine(cfg Configuration) bool {
	_, ok := cfg.(MachineConfiguration)
	return ok
}

func isImplement(cfg Configuration) bool {
	_, ok := cfg.(ImplementConfiguration)
	return ok
}

func isSection(cfg Configuration) bool {
	_, ok := cfg.(SectionConfiguration)
	return ok
}

func sortedUses(uses []domain.DeviceElementUse) []domain.DeviceElementUse {
	sorted := make([]domain.DeviceElementUse, len(uses))
	copy(sorted, uses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Depth != sorted[j].Depth {
			return sorted[i].Depth < sorted[j].Depth
		}
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func usesByConfiguration(uses []domain.DeviceElementUse) map[string][]domain.DeviceElementUse {
	byConfig := map[string][]domain.DeviceElementUse{}
	for _, use := range sortedUses(uses) {
		byConfig[use.DeviceConfigurationID] = append(byConfig[use.DeviceConfigurationID], use)
	}
	return byConfig
}

type sectionBuilder struct {
	operationID     string
	useID           string
	configurationID string
	description     string
	serialNumber    string
	isImplement     bool
	offset          Offset
	width           float64
	engagement      *domain.SensorChannel
	channels        map[string]candidateChannel
}

// finalize applies the default width rule, scales channels against the final
// width and derives the section identities.
func finalize(builders []*sectionBuilder) []SectionDefinition {
	sections := make([]SectionDefinition, 0, len(builders))
	count := float64(len(builders))

	for _, b := range builders {
		width := b.width
		if width == 0 {
			width = DefaultTotalWidth / count
		}

		channels := make(map[string]ScaledChannel, len(b.channels))
		for key, c := range b.channels {
			channels[key] = c.scaled(width)
		}

		s := SectionDefinition{
			OperationID:           b.operationID,
			DeviceElementUseID:    b.useID,
			DeviceConfigurationID: b.configurationID,
			Description:           b.description,
			SerialNumber:          b.serialNumber,
			Offset:                b.offset,
			Width:                 width,
			Engagement:            b.engagement,
			Channels:              channels,
		}
		s.ID = sectionID(s)

		sections = append(sections, s)
	}

	return sections
}
