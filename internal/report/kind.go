package report

import (
	"encoding/json"
	"fmt"
)

// GroupKind tags which actors a group summary aggregates.
type GroupKind uint8

const (
	// Producers aggregates all producing actors.
	Producers GroupKind = iota + 1
	// Consumers aggregates all consuming actors.
	Consumers
	// ProducersAndConsumers is the combined system-wide summary.
	ProducersAndConsumers
	// ProducingConsumers aggregates actors that both send and poll.
	ProducingConsumers
)

var groupKindNames = map[GroupKind]string{
	Producers:             "producers",
	Consumers:             "consumers",
	ProducersAndConsumers: "producers_and_consumers",
	ProducingConsumers:    "producing_consumers",
}

// ParseGroupKind maps the wire name of a group kind to its tag.
func ParseGroupKind(s string) (GroupKind, error) {
	for k, name := range groupKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown group kind %q", ErrInvalidReport, s)
}

// String returns the display label of the kind.
func (k GroupKind) String() string {
	switch k {
	case Producers:
		return "Producers"
	case Consumers:
		return "Consumers"
	case ProducersAndConsumers:
		return "Producers and Consumers"
	case ProducingConsumers:
		return "Producing Consumers"
	default:
		return fmt.Sprintf("GroupKind(%d)", uint8(k))
	}
}

// Actor returns the singular actor label used in per-actor averages.
func (k GroupKind) Actor() string {
	switch k {
	case Producers:
		return "Producer"
	case Consumers:
		return "Consumer"
	case ProducersAndConsumers:
		return "Actor"
	case ProducingConsumers:
		return "Producing Consumer"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k GroupKind) MarshalJSON() ([]byte, error) {
	name, ok := groupKindNames[k]
	if !ok {
		return nil, fmt.Errorf("report: cannot marshal %v", k)
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes the wire name of a kind.
func (k *GroupKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: group kind: %w", ErrInvalidReport, err)
	}
	parsed, err := ParseGroupKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
