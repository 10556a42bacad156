// README: Synthetic shelf-life projection derived from each line's last update.
package inventory

import (
	"math"
	"time"

	"bloodlink/internal/types"
)

// ShelfLife is the assumed storage limit for every unit of a line. All
// units of a line share one expiry; batches are not tracked.
const ShelfLife = 42 * 24 * time.Hour

const (
	criticalDays = 2
	warningDays  = 7
)

type ExpiryStatus string

const (
	ExpiryOK       ExpiryStatus = "ok"
	ExpiryWarning  ExpiryStatus = "warning"
	ExpiryCritical ExpiryStatus = "critical"
)

type ExpiryView struct {
	BloodGroup    types.BloodGroup `json:"bloodGroup"`
	Rh            types.Rh         `json:"rh"`
	Units         int              `json:"units"`
	RemainingDays int              `json:"remainingDays"`
	Status        ExpiryStatus     `json:"status"`
	ExpiryDate    time.Time        `json:"expiryDate"`
}

// ProjectExpiry computes the point-in-time view for lines as of now. A line
// with a zero LastUpdated is treated as updated now.
func ProjectExpiry(lines []Line, now time.Time) []ExpiryView {
	out := make([]ExpiryView, 0, len(lines))
	for _, l := range lines {
		updated := l.LastUpdated
		if updated.IsZero() {
			updated = now
		}
		expiry := updated.Add(ShelfLife)
		days := remainingDays(expiry, now)
		out = append(out, ExpiryView{
			BloodGroup:    l.BloodGroup,
			Rh:            l.Rh,
			Units:         l.Units,
			RemainingDays: days,
			Status:        classifyExpiry(days),
			ExpiryDate:    expiry,
		})
	}
	return out
}

func remainingDays(expiry, now time.Time) int {
	days := math.Ceil(float64(expiry.Sub(now)) / float64(24*time.Hour))
	if days < 0 {
		return 0
	}
	return int(days)
}

func classifyExpiry(days int) ExpiryStatus {
	switch {
	case days <= criticalDays:
		return ExpiryCritical
	case days <= warningDays:
		return ExpiryWarning
	default:
		return ExpiryOK
	}
}
