// Package pillar holds the static pillar catalog and the sequencing rules
// that decide which pillars a user may select.
package pillar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPillar is returned when a key is not part of the catalog.
var ErrUnknownPillar = errors.New("unknown pillar")

// Key identifies a pillar. The zero value is not a valid key.
type Key string

const (
	SelfCare  Key = "self_care"
	Skills    Key = "skills"
	Talent    Key = "talent"
	Brand     Key = "brand"
	Economy   Key = "economy"
	OpenTrack Key = "open_track"
)

// DefaultEntry is the mandatory first pillar when no recommendation exists yet.
const DefaultEntry = SelfCare

// canonicalOrder drives unlocking. Do not reorder without migrating users.
var canonicalOrder = []Key{SelfCare, Skills, Talent, Brand, Economy, OpenTrack}

// Pillar is the descriptive metadata for one key.
type Pillar struct {
	Key         Key      `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Dimensions  []string `json:"dimensions" yaml:"dimensions"`
}

var catalog = map[Key]Pillar{
	SelfCare: {
		Key:         SelfCare,
		Name:        "Self-care",
		Description: "Energy, rest and the daily routines that keep you going.",
		Dimensions:  []string{"sleep", "stress", "movement", "recovery"},
	},
	Skills: {
		Key:         Skills,
		Name:        "Skills",
		Description: "Deliberate practice of the competencies your work depends on.",
		Dimensions:  []string{"learning", "practice", "feedback"},
	},
	Talent: {
		Key:         Talent,
		Name:        "Talent",
		Description: "Discovering and amplifying your natural strengths.",
		Dimensions:  []string{"strengths", "flow", "expression"},
	},
	Brand: {
		Key:         Brand,
		Name:        "Brand",
		Description: "How you show up and are perceived by others.",
		Dimensions:  []string{"visibility", "story", "network"},
	},
	Economy: {
		Key:         Economy,
		Name:        "Economy",
		Description: "Income, spending and long-term financial resilience.",
		Dimensions:  []string{"income", "budget", "savings", "planning"},
	},
	OpenTrack: {
		Key:         OpenTrack,
		Name:        "Open track",
		Description: "A self-directed area you define yourself.",
		Dimensions:  []string{"clarity", "commitment", "momentum"},
	},
}

// Order returns the canonical pillar order. The returned slice is a copy.
func Order() []Key {
	out := make([]Key, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}

// Count is the number of pillars in the catalog.
func Count() int { return len(canonicalOrder) }

// Position returns the index of key in the canonical order, or -1.
func Position(key Key) int {
	for i, k := range canonicalOrder {
		if k == key {
			return i
		}
	}
	return -1
}

// Lookup returns the catalog entry for key.
func Lookup(key Key) (Pillar, bool) {
	p, ok := catalog[key]
	return p, ok
}

// All returns every pillar in canonical order.
func All() []Pillar {
	out := make([]Pillar, 0, len(canonicalOrder))
	for _, k := range canonicalOrder {
		out = append(out, catalog[k])
	}
	return out
}

// IsValid reports whether k is part of the catalog.
func (k Key) IsValid() bool {
	_, ok := catalog[k]
	return ok
}

func (k Key) String() string { return string(k) }

// DisplayName returns the human readable name, falling back to the raw key.
func (k Key) DisplayName() string {
	if p, ok := catalog[k]; ok {
		return p.Name
	}
	return string(k)
}

// ParseKey accepts both snake_case and kebab-case spellings.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPillar, s)
	}
	return k, nil
}

// UnmarshalJSON rejects keys outside the catalog.
func (k *Key) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseKey(str)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Set is an unordered collection of pillar keys.
type Set map[Key]struct{}

// NewSet builds a set from keys.
func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set is empty.
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k.
func (s Set) Add(k Key) { s[k] = struct{}{} }

// Len returns the number of members.
func (s Set) Len() int { return len(s) }

// Sorted returns the members in canonical order. Unknown keys are dropped.
func (s Set) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for _, k := range canonicalOrder {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// IsComplete reports whether every catalog pillar is in the set.
func (s Set) IsComplete() bool {
	for _, k := range canonicalOrder {
		if !s.Has(k) {
			return false
		}
	}
	return true
}
