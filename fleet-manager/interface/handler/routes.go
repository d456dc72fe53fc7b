package handler

import "github.com/labstack/echo/v4"

func RegisterRoutes(e *echo.Echo, h *FleetHandler) {
	e.GET("/healthz", Healthz)

	api := e.Group("/api")
	api.GET("/fleet", h.GetFleet)
	api.POST("/fleet/refresh", h.PostRefresh)
	api.GET("/instances", h.GetInstances)
	api.POST("/instances/:id/power", h.PostPower)
	api.POST("/instances/:id/script", h.PostScript)
	api.POST("/watch", h.PostWatch)
	api.DELETE("/watch/:id", h.DeleteWatch)
	api.PUT("/watch/:id/script-path", h.PutScriptPath)
}
