package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/internal/http/handler"
)

func SchemaRouter(rg *gin.RouterGroup, h *handler.SchemaHandler) {
	rg.GET("", h.List)
	rg.GET("/:kind/:name", h.Get)
}
