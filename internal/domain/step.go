package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StepKind is a modality of identity evidence.
type StepKind string

const (
	StepDocument StepKind = "document"
	StepFacial   StepKind = "facial"
	StepNFC      StepKind = "nfc"
	StepLiveness StepKind = "liveness"
)

// AllStepKinds is the default requirement set when a caller declares none.
var AllStepKinds = StepSet{StepDocument, StepFacial, StepNFC, StepLiveness}

func (k StepKind) Valid() bool {
	switch k {
	case StepDocument, StepFacial, StepNFC, StepLiveness:
		return true
	}
	return false
}

// StepSet is an ordered set of step kinds. Order is insertion order.
type StepSet []StepKind

// NewStepSet builds a set from raw strings, dropping duplicates.
// Unknown kinds are returned separately so callers can report them.
func NewStepSet(raw []string) (StepSet, []string) {
	var (
		set     StepSet
		invalid []string
	)
	for _, r := range raw {
		kind := StepKind(r)
		if !kind.Valid() {
			invalid = append(invalid, r)
			continue
		}
		set = set.With(kind)
	}
	return set, invalid
}

func (s StepSet) Contains(kind StepKind) bool {
	for _, k := range s {
		if k == kind {
			return true
		}
	}
	return false
}

// With returns s with kind appended if absent. s itself is never modified.
func (s StepSet) With(kind StepKind) StepSet {
	if s.Contains(kind) {
		return s
	}
	out := make(StepSet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, kind)
}

func (s StepSet) Clone() StepSet {
	if s == nil {
		return nil
	}
	out := make(StepSet, len(s))
	copy(out, s)
	return out
}

func (s StepSet) Strings() []string {
	out := make([]string, len(s))
	for i, k := range s {
		out[i] = string(k)
	}
	return out
}

// Pending computes required \ completed, keeping the order of required.
func Pending(required, completed StepSet) StepSet {
	pending := StepSet{}
	for _, kind := range required {
		if !completed.Contains(kind) {
			pending = append(pending, kind)
		}
	}
	return pending
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]StepKind(s))
}

func (s StepSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return jsonValue([]StepKind(s))
}

func (s *StepSet) Scan(src interface{}) error {
	var kinds []StepKind
	if err := scanJSON(src, &kinds); err != nil {
		return fmt.Errorf("scan step set: %w", err)
	}
	*s = kinds
	return nil
}
