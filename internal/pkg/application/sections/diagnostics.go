package sections

import "fmt"

type DiagnosticKind string

const (
	// ResolutionGap marks an element dropped because a cross-reference was
	// missing or ambiguous. Gaps are expected and not shown to users.
	ResolutionGap DiagnosticKind = "resolution-gap"
	// UnitIncompatible marks a channel whose unit cannot convert to its
	// mapped target unit.
	UnitIncompatible DiagnosticKind = "unit-incompatible"
	// NoSections marks an operation for which nothing could be resolved.
	NoSections DiagnosticKind = "no-sections"
)

type Diagnostic struct {
	Kind        DiagnosticKind
	OperationID string
	ElementID   string
	Channel     string
	Message     string
}

func (d Diagnostic) String() string {
	if d.Channel != "" {
		return fmt.Sprintf("%s: operation %s element %s channel %s: %s", d.Kind, d.OperationID, d.ElementID, d.Channel, d.Message)
	}
	return fmt.Sprintf("%s: operation %s element %s: %s", d.Kind, d.OperationID, d.ElementID, d.Message)
}

// UserVisible reports whether the diagnostic should reach the export log.
func (d Diagnostic) UserVisible() bool {
	return d.Kind != ResolutionGap
}
