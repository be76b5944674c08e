package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/internal/schema"
)

// SchemaHandler exposes the JSON Schemas of the persisted record shapes.
type SchemaHandler struct{}

func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// List returns the available variant names.
func (h *SchemaHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"variants": schema.Names()})
}

// Get returns the schema for one variant, addressed as /:kind/:name
// (e.g. /event/push, /observation/commit).
func (h *SchemaHandler) Get(c *gin.Context) {
	name := c.Param("kind") + "/" + c.Param("name")
	data, err := schema.Marshal(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
