package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth     *AuthHandler
	Students *StudentHandler
	Metrics  *MetricsHandler
}

// RegisterRoutes mounts probes at the root and the API under prefix. auth
// guards every roster route; exports are mounted only when enabled.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth gin.HandlerFunc, exportsEnabled bool) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", auth, h.Auth.Me)

	students := api.Group("/students", auth)
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.POST("/add", h.Students.Create)
	students.GET("/stats", h.Students.Stats)
	students.GET("/class-wise", h.Students.ClassWise)
	if exportsEnabled {
		students.GET("/class-wise/export", h.Students.ExportClassWise)
	}
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)
	students.POST("/:id/attendance", h.Students.MarkAttendance)
}
