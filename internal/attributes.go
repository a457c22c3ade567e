package internal

import (
	"strings"

	"github.com/chrisconley/auditor-collector/specs"
)

// Attributes is the raw key/value job info reported by the scheduler.
type Attributes struct {
	values map[string]string
}

func NewAttributes(values specs.AttributesSpec) Attributes {
	if values == nil {
		values = make(specs.AttributesSpec)
	}
	return Attributes{values: values}
}

// ParseAttributes reads the whitespace separated key=value output of
// `scontrol show job --details`. Values keep any further '=' characters;
// tokens without '=' are ignored.
func ParseAttributes(text string) Attributes {
	values := make(specs.AttributesSpec)
	for _, field := range strings.Fields(text) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return Attributes{values: values}
}

func (a Attributes) Get(key string) (string, bool) {
	val, ok := a.values[key]
	return val, ok
}

// Require returns the value of key or a MissingAttributeError.
func (a Attributes) Require(key string) (string, error) {
	val, ok := a.values[key]
	if !ok {
		return "", &MissingAttributeError{Key: key}
	}
	return val, nil
}

func (a Attributes) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for key := range a.values {
		keys = append(keys, key)
	}
	return keys
}

func (a Attributes) ToSpec() specs.AttributesSpec {
	out := make(specs.AttributesSpec, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}
