// README: Inventory lines, ledger entries and replace input.
package inventory

import (
	"time"

	"bloodlink/internal/types"
)

// Line is the current stock of one (hospital, group, rh) triple.
type Line struct {
	HospitalID  types.ID         `json:"hospitalId"`
	BloodGroup  types.BloodGroup `json:"bloodGroup"`
	Rh          types.Rh         `json:"rh"`
	Units       int              `json:"units"`
	LastUpdated time.Time        `json:"updatedAt"`
}

// Key identifies a Line.
type Key struct {
	HospitalID types.ID
	BloodType  types.BloodType
}

func (l Line) Key() Key {
	return Key{HospitalID: l.HospitalID, BloodType: types.BloodType{Group: l.BloodGroup, Rh: l.Rh}}
}

// Item is one entry of a bulk replace.
type Item struct {
	BloodGroup types.BloodGroup `json:"bloodGroup"`
	Rh         types.Rh         `json:"rh"`
	Units      int              `json:"units"`
}

type Action string

const (
	ActionReplace Action = "replace"
	ActionAdjust  Action = "adjust"
)

// LedgerEntry records one mutation of one Line. Entries are never updated or
// deleted. For replace, DeltaUnits holds the new total and PreviousUnits is nil.
type LedgerEntry struct {
	ID            types.ID         `json:"id"`
	HospitalID    types.ID         `json:"hospitalId"`
	BloodGroup    types.BloodGroup `json:"bloodGroup"`
	Rh            types.Rh         `json:"rh"`
	Action        Action           `json:"action"`
	DeltaUnits    int              `json:"deltaUnits"`
	PreviousUnits *int             `json:"previousUnits"`
	NewUnits      int              `json:"newUnits"`
	CreatedAt     time.Time        `json:"at"`
}

const (
	DefaultLedgerLimit = 50
	MaxLedgerLimit     = 200
)
