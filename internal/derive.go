package internal

import (
	"fmt"

	"github.com/chrisconley/auditor-collector/specs"
)

// DeriveSpec implements specs.Derive.
// Converts specs to domain objects, derives, and converts back to specs.
func DeriveSpec(attributesSpec specs.AttributesSpec, configSpec specs.RuleConfigSpec) ([]specs.ComponentSpec, error) {
	config, err := NewRuleConfig(configSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	components, err := Derive(NewAttributes(attributesSpec), config)
	if err != nil {
		return nil, err
	}

	out := make([]specs.ComponentSpec, len(components))
	for i, c := range components {
		out[i] = c.ToSpec()
	}
	return out, nil
}

// Derive applies the rule configuration to a job's attributes.
//
// For each component rule, in configuration order:
//  1. Evaluate the condition; skip the component and all its scores if it is false
//  2. Parse the source attribute into an Amount
//  3. Keep each score whose condition holds
//
// Any error aborts the whole derivation; a partial component list is never returned.
func Derive(attributes Attributes, config RuleConfig) ([]Component, error) {
	components := make([]Component, 0, len(config.components))

	for _, rule := range config.components {
		include, err := rule.Applies(attributes)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", rule.name.ToString(), err)
		}
		if !include {
			continue
		}

		key := rule.sourceKey.ToString()
		raw, err := attributes.Require(key)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", rule.name.ToString(), err)
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", rule.name.ToString(), &AmountParseError{Key: key, Value: raw, Err: err})
		}

		scores := make([]Score, 0, len(rule.scores))
		for _, scoreRule := range rule.scores {
			keep, err := scoreRule.Applies(attributes)
			if err != nil {
				return nil, fmt.Errorf("score %q of component %q: %w", scoreRule.score.name.ToString(), rule.name.ToString(), err)
			}
			if keep {
				scores = append(scores, scoreRule.score)
			}
		}

		component, err := NewComponent(rule.name.ToString(), amount, scores)
		if err != nil {
			return nil, fmt.Errorf("failed to create component: %w", err)
		}
		components = append(components, component)
	}

	return components, nil
}
