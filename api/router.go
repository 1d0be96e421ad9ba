package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", h.Ping)

	v1 := r.Group("/v1")
	{
		v1.POST("/query", h.Query)
		v1.POST("/tables", h.CreateTable)
		v1.GET("/schema", h.TableSchema)

		v1.GET("/analysis/:table/suggestions", h.Suggestions)
		v1.GET("/analysis/:table/stats", h.Stats)
		v1.DELETE("/analysis/:table", h.ClearStatistics)

		v1.POST("/aliases/refresh", h.RefreshAliases)
		v1.POST("/permissions/refresh", h.RefreshPermissions)

		v1.GET("/connections", h.Connections)
		v1.POST("/connections", h.SaveConnection)
		v1.POST("/connections/test", h.TestConnection)
		v1.DELETE("/connections/:id", h.RemoveConnection)
	}

	return r
}
