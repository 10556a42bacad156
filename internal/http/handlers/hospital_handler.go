// README: Hospital handlers for onboarding, lookup and profile updates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/http/middleware"
	"bloodlink/internal/modules/hospital"
	"bloodlink/internal/types"
)

type HospitalHandler struct {
	hospitals *hospital.Service
	log       *zap.Logger
}

func NewHospitalHandler(svc *hospital.Service, log *zap.Logger) *HospitalHandler {
	return &HospitalHandler{hospitals: svc, log: log}
}

type hospitalReq struct {
	Name     *string      `json:"name"`
	Address  *string      `json:"address"`
	Location *types.Point `json:"location"`
}

func (h *HospitalHandler) Create(c *gin.Context) {
	var req hospitalReq
	if !bindJSON(c, &req) {
		return
	}
	cmd := hospital.CreateCommand{OwnerID: middleware.CallerID(c), Location: req.Location}
	if req.Name != nil {
		cmd.Name = *req.Name
	}
	if req.Address != nil {
		cmd.Address = *req.Address
	}
	created, err := h.hospitals.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (h *HospitalHandler) Mine(c *gin.Context) {
	found, err := h.hospitals.Mine(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, found)
}

func (h *HospitalHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	found, err := h.hospitals.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, found)
}

func (h *HospitalHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req hospitalReq
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.hospitals.Update(c.Request.Context(), hospital.UpdateCommand{
		ID:       id,
		Name:     req.Name,
		Address:  req.Address,
		Location: req.Location,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, updated)
}

// OwnerLookup resolves the owner of the hospital named by the given path
// parameter; inventory routes use "hospitalId", hospital routes "id".
func (h *HospitalHandler) OwnerLookup(param string) middleware.OwnerLookup {
	return func(c *gin.Context) (types.ID, error) {
		id, ok := types.ParseID(c.Param(param))
		if !ok {
			return "", middleware.ErrOwnerNotFound
		}
		owner, err := h.hospitals.OwnerOf(c.Request.Context(), id)
		if err != nil {
			return "", ownerErr(err)
		}
		return owner, nil
	}
}
