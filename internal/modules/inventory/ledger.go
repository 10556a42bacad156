// README: Ledger entry construction shared by every Store implementation.
package inventory

import (
	"time"

	"bloodlink/internal/types"
)

// NewReplaceEntry records a line written by a bulk replace. The previous
// count is unknown because replace deletes before inserting.
func NewReplaceEntry(hospitalID types.ID, it Item, at time.Time) LedgerEntry {
	return LedgerEntry{
		ID:         types.NewID(),
		HospitalID: hospitalID,
		BloodGroup: it.BloodGroup,
		Rh:         it.Rh,
		Action:     ActionReplace,
		DeltaUnits: it.Units,
		NewUnits:   it.Units,
		CreatedAt:  at,
	}
}

// NewAdjustEntry records an incremental adjustment. previous must be the
// count read under the same lock that produced next.
func NewAdjustEntry(key Key, delta, previous, next int, at time.Time) LedgerEntry {
	prev := previous
	return LedgerEntry{
		ID:            types.NewID(),
		HospitalID:    key.HospitalID,
		BloodGroup:    key.BloodType.Group,
		Rh:            key.BloodType.Rh,
		Action:        ActionAdjust,
		DeltaUnits:    delta,
		PreviousUnits: &prev,
		NewUnits:      next,
		CreatedAt:     at,
	}
}

// clampLimit applies the ledger listing bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		return MaxLedgerLimit
	}
	return limit
}
