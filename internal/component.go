package internal

import (
	"fmt"
	"math"

	"github.com/chrisconley/auditor-collector/specs"
)

type ScoreFactor struct {
	value float64
}

func NewScoreFactor(value float64) (ScoreFactor, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ScoreFactor{}, &ValidationError{Field: "score factor", Value: fmt.Sprint(value), Reason: "must be finite"}
	}
	if value < 0 {
		return ScoreFactor{}, &ValidationError{Field: "score factor", Value: fmt.Sprint(value), Reason: "must not be negative"}
	}
	return ScoreFactor{value: value}, nil
}

func (f ScoreFactor) ToFloat64() float64 {
	return f.value
}

// Score is a named weighting factor attached to a component.
type Score struct {
	name   ValidName
	factor ScoreFactor
}

func NewScore(name string, factor float64) (Score, error) {
	validName, err := NewValidName("score name", name)
	if err != nil {
		return Score{}, err
	}
	validFactor, err := NewScoreFactor(factor)
	if err != nil {
		return Score{}, err
	}
	return Score{name: validName, factor: validFactor}, nil
}

func (s Score) Name() ValidName {
	return s.name
}

func (s Score) Factor() ScoreFactor {
	return s.factor
}

func (s Score) ToSpec() specs.ScoreSpec {
	return specs.ScoreSpec{Name: s.name.ToString(), Factor: s.factor.ToFloat64()}
}

// Component is a named, quantified resource dimension of a record.
type Component struct {
	name   ValidName
	amount Amount
	scores []Score
}

func NewComponent(name string, amount Amount, scores []Score) (Component, error) {
	validName, err := NewValidName("component name", name)
	if err != nil {
		return Component{}, err
	}
	if scores == nil {
		scores = []Score{}
	}
	return Component{name: validName, amount: amount, scores: scores}, nil
}

// ComponentFromSpec re-validates a component read back from storage or a caller.
func ComponentFromSpec(spec specs.ComponentSpec) (Component, error) {
	amount, err := NewAmount(spec.Amount)
	if err != nil {
		return Component{}, fmt.Errorf("invalid component %q: %w", spec.Name, err)
	}
	scores := make([]Score, 0, len(spec.Scores))
	for i, s := range spec.Scores {
		score, err := NewScore(s.Name, s.Factor)
		if err != nil {
			return Component{}, fmt.Errorf("invalid score[%d] of component %q: %w", i, spec.Name, err)
		}
		scores = append(scores, score)
	}
	return NewComponent(spec.Name, amount, scores)
}

func (c Component) Name() ValidName {
	return c.name
}

func (c Component) Amount() Amount {
	return c.amount
}

func (c Component) Scores() []Score {
	return c.scores
}

func (c Component) ToSpec() specs.ComponentSpec {
	scores := make([]specs.ScoreSpec, len(c.scores))
	for i, s := range c.scores {
		scores[i] = s.ToSpec()
	}
	return specs.ComponentSpec{
		Name:   c.name.ToString(),
		Amount: c.amount.ToInt64(),
		Scores: scores,
	}
}
