package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/requestdata"
	"github.com/veridia/veridia-backend/internal/services"
)

type AmendmentHandler struct {
	amendments services.AmendmentEngine
}

func NewAmendmentHandler(amendments services.AmendmentEngine) *AmendmentHandler {
	return &AmendmentHandler{amendments: amendments}
}

type proposeAmendmentRequest struct {
	NodeID      string     `json:"node_id"`
	FieldPath   string     `json:"field_path"`
	NewValue    any        `json:"new_value"`
	InquiryID   *uuid.UUID `json:"inquiry_id"`
	PositionID  *uuid.UUID `json:"position_id"`
	Explanation string     `json:"explanation"`
}

// POST /api/amendments
func (h *AmendmentHandler) Propose(c *gin.Context) {
	var req proposeAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	amendment, err := h.amendments.Propose(c.Request.Context(), services.ProposeAmendmentInput{
		NodeID:      req.NodeID,
		FieldPath:   req.FieldPath,
		NewValue:    req.NewValue,
		InquiryID:   req.InquiryID,
		PositionID:  req.PositionID,
		ProposedBy:  rd.ActorID,
		Explanation: req.Explanation,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"amendment": amendment})
}

// POST /api/amendments/:id/approve
func (h *AmendmentHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amendment id"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	amendment, err := h.amendments.Approve(c.Request.Context(), id, rd.ActorID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"amendment": amendment})
}

type rejectAmendmentRequest struct {
	Reason string `json:"reason"`
}

// POST /api/amendments/:id/reject
func (h *AmendmentHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amendment id"})
		return
	}
	var req rejectAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	amendment, err := h.amendments.Reject(c.Request.Context(), id, rd.ActorID, req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"amendment": amendment})
}

// GET /api/nodes/:nodeID/amendments
func (h *AmendmentHandler) ListByNode(c *gin.Context) {
	amendments, err := h.amendments.ListByNode(c.Request.Context(), c.Param("nodeID"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"amendments": amendments})
}

// GET /api/nodes/:nodeID/amendments/history?field_path=...
func (h *AmendmentHandler) History(c *gin.Context) {
	records, err := h.amendments.History(c.Request.Context(), c.Param("nodeID"), c.Query("field_path"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": records})
}
