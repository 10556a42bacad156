// README: Hospital profile owned by one hospital-role user.
package hospital

import (
	"time"

	"bloodlink/internal/types"
)

type Hospital struct {
	ID        types.ID     `json:"id"`
	OwnerID   types.ID     `json:"ownerId"`
	Name      string       `json:"name"`
	Address   string       `json:"address"`
	Location  *types.Point `json:"location,omitempty"`
	Verified  bool         `json:"verified"`
	CreatedAt time.Time    `json:"createdAt"`
}

type CreateCommand struct {
	OwnerID  types.ID
	Name     string
	Address  string
	Location *types.Point
}

// UpdateCommand changes the fields that are set.
type UpdateCommand struct {
	ID       types.ID
	Name     *string
	Address  *string
	Location *types.Point
}
