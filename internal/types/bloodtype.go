// README: ABO group / Rh factor value objects and the nearby-search filter.
package types

import (
	"encoding/json"
	"strings"
)

type BloodGroup string

const (
	GroupA  BloodGroup = "A"
	GroupB  BloodGroup = "B"
	GroupO  BloodGroup = "O"
	GroupAB BloodGroup = "AB"
)

func (g BloodGroup) Valid() bool {
	switch g {
	case GroupA, GroupB, GroupO, GroupAB:
		return true
	}
	return false
}

type Rh string

const (
	RhPositive Rh = "+"
	RhNegative Rh = "-"
)

func (r Rh) Valid() bool {
	return r == RhPositive || r == RhNegative
}

// BloodType is a full group + Rh pair such as "O+".
type BloodType struct {
	Group BloodGroup
	Rh    Rh
}

func (b BloodType) String() string {
	return string(b.Group) + string(b.Rh)
}

func (b BloodType) Valid() bool {
	return b.Group.Valid() && b.Rh.Valid()
}

// ParseBloodType parses the canonical "<group><rh>" form.
func ParseBloodType(s string) (BloodType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return BloodType{}, NewValidationError("bloodType", "invalid blood type")
	}
	bt := BloodType{Group: BloodGroup(s[:len(s)-1]), Rh: Rh(s[len(s)-1:])}
	if !bt.Group.Valid() {
		return BloodType{}, NewValidationError("bloodType", "invalid bloodGroup")
	}
	if !bt.Rh.Valid() {
		return BloodType{}, NewValidationError("bloodType", "invalid rh")
	}
	return bt, nil
}

func (b BloodType) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BloodType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewValidationError("bloodType", "must be a string")
	}
	parsed, err := ParseBloodType(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// BloodTypeFilter selects donors by group, optionally narrowed to one Rh.
// The zero value accepts every blood type.
type BloodTypeFilter struct {
	Group BloodGroup
	Rh    Rh
}

// ExactType returns a filter that accepts exactly the given type string.
func ExactType(bt BloodType) BloodTypeFilter {
	return BloodTypeFilter{Group: bt.Group, Rh: bt.Rh}
}

func (f BloodTypeFilter) IsZero() bool {
	return f.Group == ""
}

// Accepts lists the stored blood-type strings the filter matches. A bare
// group matches the group alone and both Rh variants.
func (f BloodTypeFilter) Accepts() []string {
	if f.IsZero() {
		return nil
	}
	if f.Rh != "" {
		return []string{string(f.Group) + string(f.Rh)}
	}
	g := string(f.Group)
	return []string{g, g + string(RhPositive), g + string(RhNegative)}
}

func (f BloodTypeFilter) Matches(bloodType string) bool {
	if f.IsZero() {
		return true
	}
	for _, v := range f.Accepts() {
		if v == bloodType {
			return true
		}
	}
	return false
}
