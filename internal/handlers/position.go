package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/requestdata"
	"github.com/veridia/veridia-backend/internal/services"
	"github.com/veridia/veridia-backend/internal/types"
)

type PositionHandler struct {
	positions services.PositionService
}

func NewPositionHandler(positions services.PositionService) *PositionHandler {
	return &PositionHandler{positions: positions}
}

type createPositionRequest struct {
	Stance            string   `json:"stance"`
	Argument          string   `json:"argument"`
	EvidenceCategory  string   `json:"evidence_category"`
	EvidenceLinks     []string `json:"evidence_links"`
	ProposedFieldPath string   `json:"proposed_field_path"`
	ProposedValue     any      `json:"proposed_value"`
}

// POST /api/inquiries/:id/positions
func (h *PositionHandler) Create(c *gin.Context) {
	inquiryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	var req createPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	position, err := h.positions.Create(c.Request.Context(), services.CreatePositionInput{
		InquiryID:         inquiryID,
		Stance:            types.Stance(req.Stance),
		Argument:          req.Argument,
		EvidenceCategory:  req.EvidenceCategory,
		EvidenceLinks:     req.EvidenceLinks,
		ProposedFieldPath: req.ProposedFieldPath,
		ProposedValue:     req.ProposedValue,
		ActorID:           rd.ActorID,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"position": position})
}

// GET /api/positions/:id
func (h *PositionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}
	position, err := h.positions.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"position": position})
}

// GET /api/inquiries/:id/positions
func (h *PositionHandler) ListByInquiry(c *gin.Context) {
	inquiryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inquiry id"})
		return
	}
	tiers, err := h.positions.ListByInquiry(c.Request.Context(), inquiryID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"positions": tiers})
}

type castVoteRequest struct {
	Agree bool `json:"agree"`
}

// PUT /api/positions/:id/vote
func (h *PositionHandler) CastVote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	position, err := h.positions.CastVote(c.Request.Context(), id, rd.ActorID, req.Agree)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"position": position})
}

// DELETE /api/positions/:id/vote
func (h *PositionHandler) RemoveVote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	position, err := h.positions.RemoveVote(c.Request.Context(), id, rd.ActorID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"position": position})
}

// POST /api/positions/:id/retry-evaluation
func (h *PositionHandler) RetryEvaluation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := h.positions.RetryEvaluation(c.Request.Context(), id, rd.ActorID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"requeued": true})
}
