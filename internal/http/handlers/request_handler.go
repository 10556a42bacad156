// README: Blood request handlers for create/list/get/status/fulfill.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/http/middleware"
	"bloodlink/internal/modules/request"
	"bloodlink/internal/types"
)

// HospitalOwners resolves hospital ownership for hospital-role callers.
type HospitalOwners interface {
	OwnerOf(ctx context.Context, id types.ID) (types.ID, error)
}

type RequestHandler struct {
	requests  *request.Service
	hospitals HospitalOwners
	log       *zap.Logger
}

func NewRequestHandler(svc *request.Service, hospitals HospitalOwners, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: svc, hospitals: hospitals, log: log}
}

type createRequestReq struct {
	BloodGroup   string               `json:"bloodGroup"`
	Rh           string               `json:"rh"`
	UnitsNeeded  int                  `json:"unitsNeeded"`
	Urgency      string               `json:"urgency"`
	Location     *types.Point         `json:"location"`
	Hospital     *request.HospitalRef `json:"hospital"`
	HospitalID   string               `json:"hospitalId"`
	HospitalName string               `json:"hospitalName"`
	PatientName  string               `json:"patientName"`
	Contact      string               `json:"contact"`
	Notes        string               `json:"notes"`
}

// hospitalRef prefers the tagged hospital object, then hospitalId, then
// hospitalName.
func (r createRequestReq) hospitalRef() (request.HospitalRef, error) {
	switch {
	case r.Hospital != nil:
		return *r.Hospital, nil
	case r.HospitalID != "":
		id, ok := types.ParseID(r.HospitalID)
		if !ok {
			return request.HospitalRef{}, types.NewValidationError("hospitalId", "invalid id")
		}
		return request.HospitalByID(id), nil
	case strings.TrimSpace(r.HospitalName) != "":
		return request.HospitalByName(strings.TrimSpace(r.HospitalName)), nil
	}
	return request.HospitalRef{}, nil
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if !bindJSON(c, &req) {
		return
	}
	if req.BloodGroup == "" || req.UnitsNeeded == 0 || req.Location == nil {
		writeValidation(c, types.NewValidationError("", "missing required fields"))
		return
	}
	bt, err := types.ParseBloodType(req.BloodGroup + req.Rh)
	if err != nil {
		writeValidation(c, types.NewValidationError("bloodGroup", "invalid blood type"))
		return
	}
	ref, err := req.hospitalRef()
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	created, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		RequesterID: middleware.CallerID(c),
		BloodType:   bt,
		Units:       req.UnitsNeeded,
		Location:    *req.Location,
		Hospital:    ref,
		Urgency:     request.Urgency(req.Urgency),
		PatientName: req.PatientName,
		Contact:     req.Contact,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (h *RequestHandler) List(c *gin.Context) {
	list, err := h.requests.List(c.Request.Context(), request.Status(c.Query("status")))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	writeJSON(c, http.StatusOK, orEmpty(list))
}

func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type statusReq struct {
	Status request.Status `json:"status"`
}

func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.requests.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type fulfillReq struct {
	HospitalID string `json:"hospitalId"`
	Units      int    `json:"units"`
}

func (h *RequestHandler) Fulfill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req fulfillReq
	if !bindJSON(c, &req) {
		return
	}
	hospitalID, ok := types.ParseID(req.HospitalID)
	if !ok {
		writeValidation(c, types.NewValidationError("hospitalId", "required"))
		return
	}
	ctx := c.Request.Context()
	if !middleware.HasRole(c, middleware.RoleAdmin) {
		owner, err := h.hospitals.OwnerOf(ctx, hospitalID)
		if err != nil {
			writeServiceError(c, h.log, err)
			return
		}
		if owner != middleware.CallerID(c) {
			writeServiceError(c, h.log, fmt.Errorf("%w: hospital belongs to another user", ErrForbidden))
			return
		}
	}
	r, err := h.requests.Fulfill(ctx, request.FulfillCommand{RequestID: id, HospitalID: hospitalID, Units: req.Units})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "Request fulfilled successfully", "request": r})
}

// RequesterLookup gates status changes to the request's requester.
func (h *RequestHandler) RequesterLookup(c *gin.Context) (types.ID, error) {
	id, ok := types.ParseID(c.Param("id"))
	if !ok {
		return "", middleware.ErrOwnerNotFound
	}
	owner, err := h.requests.RequesterOf(c.Request.Context(), id)
	if err != nil {
		return "", ownerErr(err)
	}
	return owner, nil
}
