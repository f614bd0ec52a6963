package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veridia/veridia-backend/internal/services"
	"github.com/veridia/veridia-backend/internal/types"
)

// AdminHandler owns the reference-data surface: evidence category weights and
// per-inquiry-type threshold sets. All routes are privileged.
type AdminHandler struct {
	catalog    services.EvidenceCatalog
	thresholds services.ThresholdRegistry
}

func NewAdminHandler(catalog services.EvidenceCatalog, thresholds services.ThresholdRegistry) *AdminHandler {
	return &AdminHandler{catalog: catalog, thresholds: thresholds}
}

// GET /api/admin/evidence-categories
func (h *AdminHandler) ListEvidenceCategories(c *gin.Context) {
	RespondOK(c, gin.H{"categories": h.catalog.All()})
}

// PUT /api/admin/evidence-categories
func (h *AdminHandler) UpsertEvidenceCategories(c *gin.Context) {
	var req struct {
		Categories []*types.EvidenceCategory `json:"categories"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.catalog.UpsertAll(c.Request.Context(), req.Categories); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"categories": h.catalog.All()})
}

// GET /api/admin/thresholds
func (h *AdminHandler) ListThresholds(c *gin.Context) {
	RespondOK(c, gin.H{"thresholds": h.thresholds.All()})
}

// PUT /api/admin/thresholds
func (h *AdminHandler) UpsertThresholds(c *gin.Context) {
	var req struct {
		Thresholds []*types.ThresholdSet `json:"thresholds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.thresholds.UpsertAll(c.Request.Context(), req.Thresholds); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"thresholds": h.thresholds.All()})
}
