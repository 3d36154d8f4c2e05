package handler

import (
	"net/http"

	"nfaportal/internal/catalog"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
	auth    gin.HandlerFunc
}

func NewCatalogHandler(cat *catalog.Catalog, auth gin.HandlerFunc) *CatalogHandler {
	return &CatalogHandler{catalog: cat, auth: auth}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/catalog", h.auth, h.GetCatalog)
}

// GetCatalog returns the reference data of the raise/edit form
// @Summary      Form catalog
// @Description  Areas, projects with their towers, departments and priorities
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=catalog.Catalog}
// @Router       /api/catalog [get]
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.catalog))
}
