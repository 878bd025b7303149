package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
)

func (s *Server) handleGetApproval(c *gin.Context) {
	req, ok := s.Approval.Pending(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending approval for this proposal"})
		return
	}
	c.JSON(http.StatusOK, req)
}

// respondApprovalRequest is the wire shape of a POST
// /api/v1/approvals/:id/respond body. :id is the proposal_id; RequestID is
// resolved from the pending ledger so callers need only know the proposal.
type respondApprovalRequest struct {
	Decision        approval.Decision `json:"decision" binding:"required"`
	ModifiedContent string            `json:"modified_content,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

func (s *Server) handleRespondApproval(c *gin.Context) {
	pending, ok := s.Approval.Pending(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending approval for this proposal"})
		return
	}

	var req respondApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.Approval.RespondTo(c.Request.Context(), approval.Response{
		RequestID:       pending.RequestID,
		Decision:        req.Decision,
		ModifiedContent: req.ModifiedContent,
		Reason:          req.Reason,
	})
	if err != nil {
		var approvalErr *approval.Error
		if errors.As(err, &approvalErr) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}
