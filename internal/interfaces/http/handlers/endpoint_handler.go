package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eastgrand/geoinsight/internal/registry"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

type endpointView struct {
	ID       string   `json:"id"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

// EndpointHandler exposes the active endpoint catalog.
type EndpointHandler struct {
	registry *registry.Registry
}

func NewEndpointHandler(reg *registry.Registry) *EndpointHandler {
	return &EndpointHandler{registry: reg}
}

// List handles GET /api/v1/endpoints.
func (h *EndpointHandler) List(c *gin.Context) {
	snap := h.registry.Current()
	if snap == nil {
		respondError(c, errors.New(errors.ErrCodeServiceUnavailable, "no endpoint configuration loaded"))
		return
	}

	views := make([]endpointView, 0, snap.Catalog.Len())
	for _, d := range snap.Catalog.All() {
		views = append(views, endpointView{ID: d.ID, Domain: d.Domain, Keywords: d.Keywords})
	}
	c.JSON(http.StatusOK, gin.H{"configVersion": snap.Version, "endpoints": views})
}
