package rubric

import "errors"

// ErrInvalidRubric is wrapped by every load-time validation failure.
var ErrInvalidRubric = errors.New("invalid rubric")

// #region priority
// Priority ranks how strictly a logic gate is enforced.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Enforced reports whether a breach at this priority triggers a supervised rewrite.
func (p Priority) Enforced() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// #endregion priority

// #region rule
// Operator is the comparison a logic gate applies to its target dimension.
type Operator string

const (
	OperatorMax   Operator = "MAX"
	OperatorAllow Operator = "ALLOW"
)

// Rule is the pre-parsed form of an enforcement string such as "MAX_TD = TD2".
type Rule struct {
	Operator  Operator
	Dimension string
	Limit     int
}

// #endregion rule

// #region catalog-types
// Band is one discrete level within a dimension.
type Band struct {
	ID          string
	Label       string
	Description string
	Fix         string
	FixRef      string
	Flag        string
	Mechanistic map[string]float64
}

// Dimension is one independent axis of the rubric with ordered bands.
type Dimension struct {
	ID    string
	Name  string
	Bands []Band
}

// Command is a fix command the model may activate.
type Command struct {
	Token       string
	Description string
}

// LogicGate links the presence of a trigger band to a limit in another dimension.
// Enforcement keeps the human-readable rule text for audit display.
type LogicGate struct {
	TriggerBand string
	Enforcement string
	Priority    Priority
	Rule        Rule
}

// #endregion catalog-types

// #region document
// document mirrors the on-disk rubric source. JSON sources decode through the
// same tags since YAML is a JSON superset.
type document struct {
	Version  string `yaml:"version"`
	Metadata struct {
		Cycle struct {
			Order []string `yaml:"order"`
		} `yaml:"cycle"`
	} `yaml:"metadata"`
	Rubrics        []rubricDoc `yaml:"rubrics"`
	CommandLibrary struct {
		Commands map[string]string `yaml:"commands"`
		Aliases  map[string]string `yaml:"aliases"`
	} `yaml:"command_library"`
	InteractionProtocol struct {
		LogicGates []gateDoc `yaml:"logic_gates"`
	} `yaml:"interaction_protocol"`
}

type rubricDoc struct {
	RubricID string    `yaml:"rubric_id"`
	Name     string    `yaml:"name"`
	Bands    []bandDoc `yaml:"bands"`
}

type bandDoc struct {
	BandID      string             `yaml:"band_id"`
	Label       string             `yaml:"label"`
	Description string             `yaml:"description"`
	Fix         string             `yaml:"fix"`
	FixRef      string             `yaml:"fix_ref"`
	Flag        string             `yaml:"flag"`
	Mechanistic map[string]float64 `yaml:"mechanistic"`
}

type gateDoc struct {
	TriggerBand string `yaml:"trigger_band"`
	Enforcement string `yaml:"enforcement"`
	Priority    string `yaml:"priority"`
}

// #endregion document
