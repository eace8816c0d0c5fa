// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/parkiq/parkiq-server/internal/config"
	"github.com/parkiq/parkiq-server/internal/handler"
	"github.com/parkiq/parkiq-server/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and QR check-in, where the scanned pass code itself is the
// credential.
func RegisterRoutes(e *echo.Echo, p *handler.ParkingHandler) {
	e.GET("/healthz", handler.Health)
	e.POST("/v1/qr-checkin", p.QRCheckIn)
}

// RegisterParking mounts the requester-facing allocation routes under /v1.
// Every route requires a valid access token; the token bucket rate limiter
// is applied across the group when Redis is configured.
func RegisterParking(e *echo.Echo, p *handler.ParkingHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.NewTokenBucket(rl, rdb))

	g.POST("/reserve", p.Reserve)
	g.POST("/checkin", p.CheckIn)
	g.POST("/checkout", p.CheckOut)
	g.POST("/cancel", p.Cancel)
	g.POST("/offer/accept", p.AcceptOffer)
	g.POST("/offer/decline", p.DeclineOffer)
	g.POST("/away", p.ExitTemporarily)
	g.POST("/return", p.Return)
	g.POST("/extension", p.Extension)
	g.GET("/state", p.State)
}

// RegisterAdmin mounts the privileged routes under /v1/admin, gated on the
// admin role claim.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("admin"))

	g.POST("/force-book", a.ForceBook)
	g.POST("/clear-penalty", a.ClearPenalty)
	g.POST("/guest-pass", a.GuestPass)
	g.PUT("/rules", a.Rules)
	g.POST("/reset", a.Reset)
	g.GET("/logs", a.Logs)
}
