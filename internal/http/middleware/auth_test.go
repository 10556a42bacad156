// README: Tests for Firebase auth middleware and role/ownership gates.
package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bloodlink/internal/http/middleware"
	"bloodlink/internal/infra"
	"bloodlink/internal/types"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	id  *infra.Identity
	err error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.Identity, error) {
	return s.id, s.err
}

func newTestRouter(verifier infra.TokenVerifier, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	r.GET("/test/:id", handlers...)
	return r
}

func do(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test/x1", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UID: "user1", Role: "donor"}})
	if w := do(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UID: "user1", Role: "donor"}})
	if w := do(r, "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w := do(r, "Bearer "); w.Code != http.StatusUnauthorized {
		t.Errorf("empty token: expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := do(r, "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UID: "hosp123", Role: "hospital"}})
	w := do(r, "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "hosp123") || !strings.Contains(body, `"role":"hospital"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRoleFromClaims_DefaultsToDonor(t *testing.T) {
	if got := infra.RoleFromClaims(map[string]interface{}{}); got != "donor" {
		t.Errorf("got %q", got)
	}
	if got := infra.RoleFromClaims(map[string]interface{}{"role": "admin"}); got != "admin" {
		t.Errorf("got %q", got)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"hospital", http.StatusOK},
		{"donor", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			r := newTestRouter(&stubVerifier{id: &infra.Identity{UID: "u", Role: tc.role}},
				middleware.RequireRole("admin", "hospital"))
			if w := do(r, "Bearer t"); w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestRequireOwnerOrRole(t *testing.T) {
	ownedBy := func(owner types.ID, err error) middleware.OwnerLookup {
		return func(c *gin.Context) (types.ID, error) {
			if c.Param("id") != "x1" {
				t.Errorf("lookup saw id %q", c.Param("id"))
			}
			return owner, err
		}
	}
	cases := []struct {
		name   string
		caller infra.Identity
		lookup middleware.OwnerLookup
		want   int
	}{
		{"owner", infra.Identity{UID: "owner-1", Role: "hospital"}, ownedBy("owner-1", nil), http.StatusOK},
		{"other hospital", infra.Identity{UID: "owner-2", Role: "hospital"}, ownedBy("owner-1", nil), http.StatusForbidden},
		{"admin bypasses lookup", infra.Identity{UID: "root", Role: "admin"}, ownedBy("", errors.New("not called")), http.StatusOK},
		{"missing resource", infra.Identity{UID: "owner-1", Role: "hospital"}, ownedBy("", middleware.ErrOwnerNotFound), http.StatusNotFound},
		{"lookup failure", infra.Identity{UID: "owner-1", Role: "hospital"}, ownedBy("", errors.New("db down")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := tc.caller
			r := newTestRouter(&stubVerifier{id: &caller}, middleware.RequireOwnerOrRole(tc.lookup, "admin"))
			if w := do(r, "Bearer t"); w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestRecovery_LogsAndReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(middleware.Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Errorf("panic not logged")
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(middleware.Logging(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusTeapot, "") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", bytes.NewReader(nil)))
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", got)
	}
}
