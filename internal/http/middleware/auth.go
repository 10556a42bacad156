// README: Firebase auth middleware; verifies the bearer token and gates routes by role or ownership.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bloodlink/internal/infra"
	"bloodlink/internal/types"
)

const (
	RoleDonor    = "donor"
	RoleHospital = "hospital"
	RoleAdmin    = "admin"
)

const (
	ctxKeyUID  = "auth.uid"
	ctxKeyRole = "auth.role"
)

// OwnerLookup resolves the owning user of the resource addressed by the request.
type OwnerLookup func(c *gin.Context) (types.ID, error)

// ErrOwnerNotFound is returned by an OwnerLookup whose resource is missing.
var ErrOwnerNotFound = errors.New("resource not found")

// Auth rejects requests without a valid "Bearer <token>" header and stores
// the caller's uid and role on the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil || id == nil || id.UID == "" {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ctxKeyUID, id.UID)
		c.Set(ctxKeyRole, id.Role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxKeyRole)
}

// CallerID is the caller's uid as a user id.
func CallerID(c *gin.Context) types.ID {
	return types.ID(CallerUID(c))
}

func HasRole(c *gin.Context, roles ...string) bool {
	role := CallerRole(c)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasRole(c, roles...) {
			abort(c, http.StatusForbidden, "forbidden: requires role "+strings.Join(roles, " or "))
			return
		}
		c.Next()
	}
}

// RequireOwnerOrRole lets callers holding one of roles through, otherwise the
// caller must be the owner returned by lookup.
func RequireOwnerOrRole(lookup OwnerLookup, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if HasRole(c, roles...) {
			c.Next()
			return
		}
		owner, err := lookup(c)
		switch {
		case errors.Is(err, ErrOwnerNotFound):
			abort(c, http.StatusNotFound, err.Error())
			return
		case err != nil:
			abort(c, http.StatusInternalServerError, "internal error")
			return
		}
		if owner == "" || owner != CallerID(c) {
			abort(c, http.StatusForbidden, "forbidden: not the owner")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
