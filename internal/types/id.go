// README: Shared identifier type; IDs are UUID strings.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID accepts a UUID in any of the forms uuid.Parse understands and
// returns it in canonical lower-case form.
func ParseID(s string) (ID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return ID(u.String()), true
}
