// Package api is the loopback JSON adapter a browser front-end talks to.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskmaster/pkg/api/handlers"
	"github.com/harrisonrobin/taskmaster/pkg/api/middleware"
	"github.com/harrisonrobin/taskmaster/pkg/api/ws"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Tasks  *handlers.TaskHandler
	Views  *handlers.ViewHandler
	Focus  *handlers.FocusHandler
	Hub    *ws.Hub
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")
	api.Use(middleware.LanguageMiddleware())
	{
		api.GET("/health", h.Health.CheckHealth)
		api.GET("/health/report", h.Health.CheckHealthReport)

		api.GET("/tasks", h.Tasks.ListTasks)
		api.POST("/tasks", h.Tasks.CreateTask)
		api.GET("/tasks/:id", h.Tasks.GetTask)
		api.PATCH("/tasks/:id", h.Tasks.UpdateTask)
		api.DELETE("/tasks/:id", h.Tasks.DeleteTask)
		api.POST("/tasks/:id/advance", h.Tasks.AdvanceTask)

		api.GET("/stats", h.Views.Stats)
		api.GET("/dashboard", h.Views.Dashboard)
		api.GET("/analytics", h.Views.Analytics)
		api.GET("/calendar", h.Views.Month)
		api.GET("/calendar/:date", h.Views.Day)

		api.GET("/focus", h.Focus.State)
		api.POST("/focus/start", h.Focus.Start)
		api.POST("/focus/pause", h.Focus.Pause)
		api.POST("/focus/resume", h.Focus.Resume)
		api.POST("/focus/reset", h.Focus.Reset)
		api.PUT("/focus/settings", h.Focus.UpdateSettings)

		api.GET("/alerts", h.Hub.ServeWS)
		api.GET("/alerts/active", h.Hub.ListActive)
		api.DELETE("/alerts/:tag", h.Hub.DismissTag)
	}
}
