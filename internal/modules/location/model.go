// README: Donor read model and nearby-search result.
package location

import "bloodlink/internal/types"

// Donor is the subset of a user record the locator reads. Users are owned
// by the identity side; this module never writes anything but coordinates.
type Donor struct {
	ID        types.ID     `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone,omitempty"`
	BloodType string       `json:"bloodGroup"`
	Location  *types.Point `json:"location,omitempty"`
}

// DonorDistance is a donor annotated with its distance from the search origin.
type DonorDistance struct {
	Donor
	DistanceKm float64 `json:"distanceKm"`
}

// DefaultRadiusKm is used when a nearby search does not specify a radius.
const DefaultRadiusKm = 25.0
