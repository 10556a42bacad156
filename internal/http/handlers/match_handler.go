// README: Match handlers for run/get.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/modules/matching"
)

type MatchHandler struct {
	matching *matching.Service
	log      *zap.Logger
}

func NewMatchHandler(svc *matching.Service, log *zap.Logger) *MatchHandler {
	return &MatchHandler{matching: svc, log: log}
}

func (h *MatchHandler) Run(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	matches, err := h.matching.Run(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(matches))
}

func (h *MatchHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	matches, err := h.matching.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, orEmpty(matches))
}
