// README: Donor handlers for nearby search and the caller's own profile/location.
package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/http/middleware"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/types"
)

type DonorHandler struct {
	location     *location.Service
	nearbyRadius float64
	log          *zap.Logger
}

// NewDonorHandler uses nearbyRadiusKm when a search omits km.
func NewDonorHandler(svc *location.Service, nearbyRadiusKm float64, log *zap.Logger) *DonorHandler {
	return &DonorHandler{location: svc, nearbyRadius: nearbyRadiusKm, log: log}
}

func (h *DonorHandler) Nearby(c *gin.Context) {
	lat := queryFloat(c, "lat")
	lng := queryFloat(c, "lng")
	if math.IsNaN(lat) || math.IsNaN(lng) {
		writeValidation(c, types.NewValidationError("lat/lng", "lat and lng query parameters are required"))
		return
	}
	radius := h.nearbyRadius
	if c.Query("km") != "" {
		radius = queryFloat(c, "km")
	}
	filter, err := parseFilter(c.Query("bg"), c.Query("rh"))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	donors, err := h.location.FindNearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius, filter)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(donors))
}

func (h *DonorHandler) Me(c *gin.Context) {
	donor, err := h.location.Me(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, donor)
}

type locationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *DonorHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeValidation(c, types.NewValidationError("location", "location.lat and location.lng must be numbers"))
		return
	}
	ctx := c.Request.Context()
	uid := middleware.CallerID(c)
	if err := h.location.UpdateDonorLocation(ctx, uid, types.Point{Lat: *req.Lat, Lng: *req.Lng}); err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	donor, err := h.location.Me(ctx, uid)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, donor)
}

// queryFloat returns NaN for a missing or malformed parameter.
func queryFloat(c *gin.Context, name string) float64 {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseFilter accepts bg=O&rh=+ as well as bg=O+. An empty bg matches all.
// An unescaped "+" arrives as a space and is read back as positive.
func parseFilter(bg, rh string) (types.BloodTypeFilter, error) {
	if strings.HasSuffix(bg, " ") && strings.TrimSpace(bg) != "" {
		bg = strings.TrimSpace(bg) + "+"
	}
	if rh == " " {
		rh = "+"
	}
	bg = strings.ToUpper(strings.TrimSpace(bg))
	rh = strings.TrimSpace(rh)
	if bg == "" {
		return types.BloodTypeFilter{}, nil
	}
	if n := len(bg); n > 1 && (bg[n-1] == '+' || bg[n-1] == '-') {
		if rh == "" {
			rh = bg[n-1:]
		}
		bg = bg[:n-1]
	}
	f := types.BloodTypeFilter{Group: types.BloodGroup(bg)}
	if !f.Group.Valid() {
		return f, types.NewValidationError("bg", "invalid bloodGroup")
	}
	if rh != "" {
		f.Rh = types.Rh(rh)
		if !f.Rh.Valid() {
			return f, types.NewValidationError("rh", "invalid rh")
		}
	}
	return f, nil
}
