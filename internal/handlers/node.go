package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/services"
)

type NodeHandler struct {
	nodes    graph.NodeStore
	pipeline services.PipelineService
}

func NewNodeHandler(nodes graph.NodeStore, pipeline services.PipelineService) *NodeHandler {
	return &NodeHandler{nodes: nodes, pipeline: pipeline}
}

// GET /api/nodes/:nodeID/credibility
func (h *NodeHandler) GetCredibility(c *gin.Context) {
	nodeID := c.Param("nodeID")
	credibility, err := h.nodes.GetCredibility(c.Request.Context(), nodeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"node_id": nodeID, "credibility": credibility})
}

// POST /api/nodes/:nodeID/credibility/recompute
func (h *NodeHandler) RecomputeCredibility(c *gin.Context) {
	nodeID := c.Param("nodeID")
	if err := h.pipeline.RecomputeNodeCredibility(c.Request.Context(), nodeID); err != nil {
		RespondError(c, err)
		return
	}
	credibility, err := h.nodes.GetCredibility(c.Request.Context(), nodeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"node_id": nodeID, "credibility": credibility})
}
