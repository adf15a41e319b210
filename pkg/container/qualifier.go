package container

import (
	"strings"
)

// NamedKind is the qualifier kind used by Named. A qualifier set holds at most one.
const NamedKind = "Named"

// Qualifier disambiguates between beans satisfying the same type.
// Qualifiers are plain values and compare structurally.
type Qualifier struct {
	Kind  string
	Value string
}

// Named returns the Named qualifier with the given value
func Named(name string) Qualifier {
	return Qualifier{Kind: NamedKind, Value: name}
}

// Marker returns a value-less qualifier of the given kind
func Marker(kind string) Qualifier {
	return Qualifier{Kind: kind}
}

// IsNamed reports whether q is a Named qualifier
func (q Qualifier) IsNamed() bool {
	return q.Kind == NamedKind
}

func (q Qualifier) String() string {
	if q.Value == "" {
		return "@" + q.Kind
	}
	return "@" + q.Kind + "(" + q.Value + ")"
}

// QualifierSet is an insertion-ordered set of qualifiers.
// Adding a Named qualifier replaces any Named qualifier already present.
type QualifierSet struct {
	items []Qualifier
}

// NewQualifierSet builds a set by adding each qualifier in turn
func NewQualifierSet(qualifiers ...Qualifier) QualifierSet {
	var s QualifierSet
	for _, q := range qualifiers {
		s.Add(q)
	}
	return s
}

// Add inserts q, replacing the current Named qualifier when q is Named.
func (s *QualifierSet) Add(q Qualifier) {
	for i, existing := range s.items {
		if existing == q {
			return
		}
		if q.IsNamed() && existing.IsNamed() {
			s.items[i] = q
			return
		}
	}
	s.items = append(s.items, q)
}

// AddAll adds every qualifier of other
func (s *QualifierSet) AddAll(other QualifierSet) {
	for _, q := range other.items {
		s.Add(q)
	}
}

// Contains reports whether q is in the set
func (s QualifierSet) Contains(q Qualifier) bool {
	for _, existing := range s.items {
		if existing == q {
			return true
		}
	}
	return false
}

// ContainsAll reports whether s is a superset of other
func (s QualifierSet) ContainsAll(other QualifierSet) bool {
	for _, q := range other.items {
		if !s.Contains(q) {
			return false
		}
	}
	return true
}

// Named returns the value of the Named qualifier, if any
func (s QualifierSet) Named() (string, bool) {
	for _, q := range s.items {
		if q.IsNamed() {
			return q.Value, true
		}
	}
	return "", false
}

// Len returns the number of qualifiers in the set
func (s QualifierSet) Len() int {
	return len(s.items)
}

// Slice returns a copy of the qualifiers in insertion order
func (s QualifierSet) Slice() []Qualifier {
	out := make([]Qualifier, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy of the set
func (s QualifierSet) Clone() QualifierSet {
	return QualifierSet{items: s.Slice()}
}

func (s QualifierSet) String() string {
	parts := make([]string, len(s.items))
	for i, q := range s.items {
		parts[i] = q.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// parseQualifierTag parses the value of an `inject` struct tag.
//
//	inject:""                  no qualifiers
//	inject:"Named=primary"     Named("primary"), "name" and "named" are accepted too
//	inject:"Fast"              Marker("Fast")
//	inject:"Region=eu,Fast"    Qualifier{"Region","eu"} and Marker("Fast")
func parseQualifierTag(tag string) (QualifierSet, error) {
	var set QualifierSet
	var named string
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return set, nil
	}
	for _, item := range strings.Split(tag, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return set, &tagError{tag: tag, reason: "empty qualifier"}
		}
		kind, value, hasValue := strings.Cut(item, "=")
		kind = strings.TrimSpace(kind)
		value = strings.TrimSpace(value)
		if kind == "" {
			return set, &tagError{tag: tag, reason: "qualifier without kind"}
		}
		switch strings.ToLower(kind) {
		case "name", "named":
			if !hasValue || value == "" {
				return set, &tagError{tag: tag, reason: "Named requires a value"}
			}
			if named != "" && named != value {
				return set, &tagError{tag: tag, reason: "conflicting Named qualifiers " + named + " and " + value}
			}
			named = value
			set.Add(Named(value))
		default:
			set.Add(Qualifier{Kind: kind, Value: value})
		}
	}
	return set, nil
}

type tagError struct {
	tag    string
	reason string
}

func (e *tagError) Error() string {
	return "malformed inject tag " + `"` + e.tag + `": ` + e.reason
}
