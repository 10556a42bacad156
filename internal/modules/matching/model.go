// README: Donor matches for a blood request and the ranking score.
package matching

import (
	"time"

	"bloodlink/internal/types"
)

// DonorSummary is the donor detail joined into a listed match.
type DonorSummary struct {
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	BloodGroup string       `json:"bloodGroup"`
	Location   *types.Point `json:"location,omitempty"`
}

type Match struct {
	ID             types.ID      `json:"id"`
	RequestID      types.ID      `json:"requestId"`
	DonorID        types.ID      `json:"donorId"`
	Donor          *DonorSummary `json:"donor,omitempty"`
	DistanceKm     float64       `json:"distanceKm"`
	Score          float64       `json:"score"`
	UnitsAvailable int           `json:"unitsAvailable"`
	CreatedAt      time.Time     `json:"createdAt"`
}

const (
	// DefaultRadiusKm is the matching cutoff when none is configured.
	DefaultRadiusKm = 50.0
	// unitsPerDonor is what one donor is assumed to give.
	unitsPerDonor = 1
)

// Score ranks a donor by inverse distance. It is 1 at zero distance and
// strictly decreasing.
func Score(distanceKm float64) float64 {
	return 1 / (1 + distanceKm)
}
