package internal

import (
	"fmt"
	"regexp"

	"github.com/chrisconley/auditor-collector/specs"
)

// RuleConfig is the compiled rule configuration. It is immutable once built.
type RuleConfig struct {
	components []ComponentRule
}

func NewRuleConfig(spec specs.RuleConfigSpec) (RuleConfig, error) {
	components := make([]ComponentRule, 0, len(spec.Components))
	for i, c := range spec.Components {
		rule, err := NewComponentRule(c)
		if err != nil {
			return RuleConfig{}, &ConfigError{Setting: fmt.Sprintf("components[%d] (%s)", i, c.Name), Err: err}
		}
		components = append(components, rule)
	}
	return RuleConfig{components: components}, nil
}

func (c RuleConfig) Components() []ComponentRule {
	return c.components
}

type ComponentRule struct {
	name      ValidName
	sourceKey AttributeKey
	condition *Condition
	scores    []ScoreRule
}

func NewComponentRule(spec specs.ComponentRuleSpec) (ComponentRule, error) {
	name, err := NewValidName("component name", spec.Name)
	if err != nil {
		return ComponentRule{}, err
	}

	sourceKey, err := NewAttributeKey(spec.Key)
	if err != nil {
		return ComponentRule{}, fmt.Errorf("invalid key: %w", err)
	}

	condition, err := newOptionalCondition(spec.OnlyIf)
	if err != nil {
		return ComponentRule{}, err
	}

	scores := make([]ScoreRule, 0, len(spec.Scores))
	for i, s := range spec.Scores {
		rule, err := NewScoreRule(s)
		if err != nil {
			return ComponentRule{}, fmt.Errorf("score %d: %w", i, err)
		}
		scores = append(scores, rule)
	}

	return ComponentRule{
		name:      name,
		sourceKey: sourceKey,
		condition: condition,
		scores:    scores,
	}, nil
}

func (r ComponentRule) Name() ValidName {
	return r.name
}

func (r ComponentRule) SourceKey() AttributeKey {
	return r.sourceKey
}

func (r ComponentRule) Condition() *Condition {
	return r.condition
}

func (r ComponentRule) Scores() []ScoreRule {
	return r.scores
}

// Applies reports whether the rule's condition holds (or there is none).
func (r ComponentRule) Applies(attributes Attributes) (bool, error) {
	if r.condition == nil {
		return true, nil
	}
	return r.condition.Matches(attributes)
}

type ScoreRule struct {
	score     Score
	condition *Condition
}

func NewScoreRule(spec specs.ScoreRuleSpec) (ScoreRule, error) {
	score, err := NewScore(spec.Name, spec.Factor)
	if err != nil {
		return ScoreRule{}, err
	}
	condition, err := newOptionalCondition(spec.OnlyIf)
	if err != nil {
		return ScoreRule{}, err
	}
	return ScoreRule{score: score, condition: condition}, nil
}

func (r ScoreRule) Score() Score {
	return r.score
}

func (r ScoreRule) Condition() *Condition {
	return r.condition
}

func (r ScoreRule) Applies(attributes Attributes) (bool, error) {
	if r.condition == nil {
		return true, nil
	}
	return r.condition.Matches(attributes)
}

// Condition gates a rule on an attribute value matching a regular expression.
type Condition struct {
	key     AttributeKey
	matches *regexp.Regexp
}

func NewCondition(spec specs.ConditionSpec) (Condition, error) {
	key, err := NewAttributeKey(spec.Key)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid condition key: %w", err)
	}
	re, err := regexp.Compile(spec.Matches)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid regex expression %q: %w", spec.Matches, err)
	}
	return Condition{key: key, matches: re}, nil
}

func newOptionalCondition(spec *specs.ConditionSpec) (*Condition, error) {
	if spec == nil {
		return nil, nil
	}
	c, err := NewCondition(*spec)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (c Condition) Key() AttributeKey {
	return c.key
}

func (c Condition) Pattern() string {
	return c.matches.String()
}

// Matches tests the condition against the job's attributes. A missing attribute
// is an error, not a non-match.
func (c Condition) Matches(attributes Attributes) (bool, error) {
	value, err := attributes.Require(c.key.ToString())
	if err != nil {
		return false, err
	}
	return c.matches.MatchString(value), nil
}

type AttributeKey struct {
	value string
}

func NewAttributeKey(value string) (AttributeKey, error) {
	if value == "" {
		return AttributeKey{}, fmt.Errorf("attribute key is required")
	}
	return AttributeKey{value: value}, nil
}

func (k AttributeKey) ToString() string {
	return k.value
}
