package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/requestdata"
	"github.com/veridia/veridia-backend/internal/services"
	"github.com/veridia/veridia-backend/internal/types"
)

type InquiryHandler struct {
	inquiries  services.InquiryService
	confidence services.ConfidenceService
}

func NewInquiryHandler(inquiries services.InquiryService, confidence services.ConfidenceService) *InquiryHandler {
	return &InquiryHandler{inquiries: inquiries, confidence: confidence}
}

type createInquiryRequest struct {
	NodeID         string   `json:"node_id"`
	EdgeID         string   `json:"edge_id"`
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Justification  string   `json:"justification"`
	RelatedNodeIDs []string `json:"related_node_ids"`
}

// POST /api/inquiries
func (h *InquiryHandler) Create(c *gin.Context) {
	var req createInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	inquiry, err := h.inquiries.Create(c.Request.Context(), services.CreateInquiryInput{
		NodeID:         req.NodeID,
		EdgeID:         req.EdgeID,
		Type:           types.InquiryType(req.Type),
		Title:          req.Title,
		Description:    req.Description,
		Justification:  req.Justification,
		RelatedNodeIDs: req.RelatedNodeIDs,
		ActorID:        rd.ActorID,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"inquiry": inquiry})
}

// GET /api/inquiries/:id
func (h *InquiryHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	inquiry, err := h.inquiries.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"inquiry": inquiry})
}

// GET /api/nodes/:nodeID/inquiries
func (h *InquiryHandler) ListByNode(c *gin.Context) {
	inquiries, err := h.inquiries.ListByNode(c.Request.Context(), c.Param("nodeID"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"inquiries": inquiries})
}

type mergeInquiryRequest struct {
	IntoInquiryID uuid.UUID `json:"into_inquiry_id"`
}

// POST /api/inquiries/:id/merge
func (h *InquiryHandler) Merge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	var req mergeInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := h.inquiries.Merge(c.Request.Context(), id, req.IntoInquiryID, rd.ActorID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"merged": true})
}

// POST /api/inquiries/:id/close
func (h *InquiryHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := h.inquiries.Close(c.Request.Context(), id, rd.ActorID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"closed": true})
}

type setRelatedNodesRequest struct {
	NodeIDs []string `json:"node_ids"`
}

// PUT /api/inquiries/:id/related-nodes
func (h *InquiryHandler) SetRelatedNodes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	var req setRelatedNodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := h.inquiries.SetRelatedNodes(c.Request.Context(), id, req.NodeIDs, rd.ActorID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

// POST /api/inquiries/:id/confidence
func (h *InquiryHandler) EvaluateConfidence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	result, err := h.confidence.Evaluate(c.Request.Context(), id, rd.ActorID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"confidence": result})
}

// GET /api/inquiries/:id/confidence/history
func (h *InquiryHandler) ConfidenceHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	audits, err := h.confidence.History(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": audits})
}
