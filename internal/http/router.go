// README: API gateway; registers gin routes, auth gates and delegates to module handlers.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bloodlink/internal/events"
	"bloodlink/internal/http/handlers"
	"bloodlink/internal/http/middleware"
	"bloodlink/internal/infra"
	"bloodlink/internal/modules/hospital"
	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/modules/matching"
	"bloodlink/internal/modules/request"
)

type RouterDeps struct {
	Inventory *inventory.Service
	Location  *location.Service
	Requests  *request.Service
	Matching  *matching.Service
	Hospitals *hospital.Service
	Broker    *events.Broker
	Verifier  infra.TokenVerifier
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	Log      *zap.Logger

	NearbyRadiusKm float64
	Heartbeat      time.Duration
	StreamBuffer   int
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(d.Log), middleware.Recovery(d.Log))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	invH := handlers.NewInventoryHandler(d.Inventory, d.Log)
	donorH := handlers.NewDonorHandler(d.Location, d.NearbyRadiusKm, d.Log)
	reqH := handlers.NewRequestHandler(d.Requests, d.Hospitals, d.Log)
	matchH := handlers.NewMatchHandler(d.Matching, d.Log)
	hospH := handlers.NewHospitalHandler(d.Hospitals, d.Log)
	streamH := handlers.NewStreamHandler(d.Broker, d.Heartbeat, d.StreamBuffer, d.Log)

	auth := middleware.Auth(d.Verifier)
	admin := middleware.RoleAdmin
	api := r.Group("/api")

	inv := api.Group("/inventory/:hospitalId")
	hospitalOwner := middleware.RequireOwnerOrRole(hospH.OwnerLookup("hospitalId"), admin)
	inv.GET("", invH.List)
	inv.PUT("", auth, hospitalOwner, invH.Replace)
	inv.PATCH("/item", auth, hospitalOwner, invH.Adjust)
	inv.GET("/logs", auth, hospitalOwner, invH.Logs)
	inv.GET("/expiry", invH.Expiry)

	donors := api.Group("/donors", auth, middleware.RequireRole(middleware.RoleDonor))
	donors.GET("/nearby", donorH.Nearby)
	donors.GET("/me", donorH.Me)
	donors.PUT("/me/location", donorH.UpdateLocation)

	reqs := api.Group("/requests")
	reqs.POST("", auth, reqH.Create)
	reqs.GET("", reqH.List)
	reqs.GET("/stream", streamH.Stream)
	reqs.GET("/:id", reqH.Get)
	reqs.PATCH("/:id/status", auth, middleware.RequireOwnerOrRole(reqH.RequesterLookup, middleware.RoleDonor, admin), reqH.UpdateStatus)
	reqs.POST("/:id/fulfill", auth, middleware.RequireRole(admin, middleware.RoleHospital), reqH.Fulfill)
	reqs.POST("/:id/match", auth, middleware.RequireRole(admin), matchH.Run)
	reqs.GET("/:id/matches", matchH.Get)

	hosp := api.Group("/hospitals")
	hosp.POST("", auth, middleware.RequireRole(middleware.RoleHospital, admin), hospH.Create)
	hosp.GET("/me", auth, middleware.RequireRole(middleware.RoleHospital, admin), hospH.Mine)
	hosp.GET("/:id", hospH.Get)
	hosp.PUT("/:id", auth, middleware.RequireOwnerOrRole(hospH.OwnerLookup("id"), admin), hospH.Update)

	return r
}
