package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/internal/http/handler"
)

func EvidenceRouter(rg *gin.RouterGroup, h *handler.EvidenceHandler) {
	rg.GET("", h.List)
	rg.GET("/summary", h.Summary)
	rg.POST("/verify", h.Verify)
	rg.GET("/:id", h.Get)
}
