// README: Inventory handlers for list/replace/adjust/logs/expiry.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/types"
)

type InventoryHandler struct {
	inventory *inventory.Service
	log       *zap.Logger
}

func NewInventoryHandler(svc *inventory.Service, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: svc, log: log}
}

func (h *InventoryHandler) List(c *gin.Context) {
	hospitalID, ok := pathID(c, "hospitalId")
	if !ok {
		return
	}
	lines, err := h.inventory.List(c.Request.Context(), hospitalID)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(lines))
}

// Replace takes a bare JSON array of {bloodGroup, rh, units}.
func (h *InventoryHandler) Replace(c *gin.Context) {
	hospitalID, ok := pathID(c, "hospitalId")
	if !ok {
		return
	}
	var items []inventory.Item
	// A JSON null decodes to a nil slice; only an explicit [] clears stock.
	if err := c.ShouldBindJSON(&items); err != nil || items == nil {
		writeError(c, http.StatusBadRequest, "array expected")
		return
	}
	lines, err := h.inventory.ReplaceAll(c.Request.Context(), hospitalID, items)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(lines))
}

type adjustReq struct {
	BloodGroup types.BloodGroup `json:"bloodGroup"`
	Rh         types.Rh         `json:"rh"`
	DeltaUnits *int             `json:"deltaUnits"`
}

func (h *InventoryHandler) Adjust(c *gin.Context) {
	hospitalID, ok := pathID(c, "hospitalId")
	if !ok {
		return
	}
	var req adjustReq
	if !bindJSON(c, &req) {
		return
	}
	if req.BloodGroup == "" || req.Rh == "" || req.DeltaUnits == nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	line, err := h.inventory.Adjust(c.Request.Context(), hospitalID,
		types.BloodType{Group: req.BloodGroup, Rh: req.Rh}, *req.DeltaUnits)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, line)
}

func (h *InventoryHandler) Logs(c *gin.Context) {
	hospitalID, ok := pathID(c, "hospitalId")
	if !ok {
		return
	}
	// A missing or malformed limit falls back to the default.
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.inventory.Logs(c.Request.Context(), hospitalID, limit)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(entries))
}

func (h *InventoryHandler) Expiry(c *gin.Context) {
	hospitalID, ok := pathID(c, "hospitalId")
	if !ok {
		return
	}
	views, err := h.inventory.Expiry(c.Request.Context(), hospitalID)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(views))
}
