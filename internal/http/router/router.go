package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/internal/http/handler"
	"github.com/mbrg/raptor/internal/store"
	"github.com/mbrg/raptor/internal/verify"
)

func SetupRoutes(router *gin.Engine, st *store.Store, verifier verify.BatchVerifier) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		evidenceHandler := handler.NewEvidenceHandler(st, verifier)
		EvidenceRouter(v1.Group("/evidence"), evidenceHandler)

		schemaHandler := handler.NewSchemaHandler()
		SchemaRouter(v1.Group("/schemas"), schemaHandler)
	}
}
