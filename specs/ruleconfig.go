package specs

// RuleConfigSpec defines how scheduler attributes are turned into record components.
//
// Components are evaluated in the listed order and appear in the record in the
// same order. The configuration is loaded once at start-up; a rule that cannot be
// compiled stops the collector before any job is processed.
type RuleConfigSpec struct {
	// Component rules, in the order they should appear in the record.
	Components []ComponentRuleSpec `json:"components" yaml:"components"`
}

// ComponentRuleSpec defines one accounted resource dimension.
type ComponentRuleSpec struct {
	// Name of the component in the resulting record.
	//
	// Forbidden characters are stripped before validation. Examples: "Cores",
	// "nodes", "Memory".
	Name string `json:"name" yaml:"name"`

	// Attribute whose value becomes the component amount.
	//
	// The value must parse as a non-negative integer. Examples: "NumCPUs",
	// "NumNodes", "MinMemoryNode".
	Key string `json:"key" yaml:"key"`

	// Optional condition gating the whole component, scores included.
	//
	// If nil, the component is always included.
	OnlyIf *ConditionSpec `json:"only_if,omitempty" yaml:"only_if,omitempty"`

	// Scores attached to the component, in order.
	Scores []ScoreRuleSpec `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// ScoreRuleSpec defines a weighting factor attached to a component.
type ScoreRuleSpec struct {
	// Name of the score. Examples: "HEPSPEC", "HEPscore23".
	Name string `json:"name" yaml:"name"`

	// Weighting factor; must be finite and non-negative.
	Factor float64 `json:"factor" yaml:"factor"`

	// Optional condition gating this score only.
	OnlyIf *ConditionSpec `json:"only_if,omitempty" yaml:"only_if,omitempty"`
}

// ConditionSpec gates a rule on the value of one attribute.
//
// The attribute named by Key must be present in every job the collector sees;
// a missing attribute means the configuration does not fit the scheduler output
// and is reported as an error rather than treated as a non-match.
type ConditionSpec struct {
	// Attribute to test. Examples: "Partition", "Account".
	Key string `json:"key" yaml:"key"`

	// Regular expression (RE2 syntax) the attribute value must match.
	//
	// Unanchored unless the pattern anchors itself. Examples: "^gpu.*",
	// "^(short|long)$".
	Matches string `json:"matches" yaml:"matches"`
}
