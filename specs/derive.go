package specs

import "time"

// Derive turns scheduler attributes into record components by applying the rule configuration.
//
// For each component rule, in order:
//  1. Evaluate the optional condition; skip the component (and its scores) if it does not match
//  2. Parse the attribute named by the rule key as a non-negative integer amount
//  3. Evaluate each score rule's optional condition and keep the matching scores
//
// A condition referencing a missing attribute, a missing source attribute and an
// unparsable amount are all errors; no partial result is returned.
//
// This is the spec-level interface using only primitive types.
// See internal.DeriveSpec for the reference implementation.
type Derive func(attributes AttributesSpec, config RuleConfigSpec) ([]ComponentSpec, error)

// Build assembles a record from identifiers, a start time and derived components.
//
// Identifiers are sanitized and validated. The resulting record has no stop time;
// see internal.OpenRecord.Finalize.
type Build func(identity IdentitySpec, start time.Time, components []ComponentSpec) (RecordSpec, error)
