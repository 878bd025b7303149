package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/engine"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
)

// proposeMutationRequest is the wire shape of a POST /api/v1/proposals body.
type proposeMutationRequest struct {
	SpecID          string                 `json:"spec_id" binding:"required"`
	OperationType   mutation.OperationType `json:"operation_type" binding:"required"`
	CurrentVersion  string                 `json:"current_version"`
	ProposedChanges map[string]any         `json:"proposed_changes" binding:"required"`
	Reasoning       string                 `json:"reasoning"`
	Confidence      float64                `json:"confidence"`
	UserID          string                 `json:"user_id"`
}

func (s *Server) handleProposeMutation(c *gin.Context) {
	var req proposeMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.Engine.ProposeMutation(c.Request.Context(), engine.ProposeMutationInput{
		SpecID:          req.SpecID,
		OperationType:   req.OperationType,
		CurrentVersion:  req.CurrentVersion,
		ProposedChanges: req.ProposedChanges,
		Reasoning:       req.Reasoning,
		Confidence:      req.Confidence,
		UserID:          req.UserID,
	})
	if err != nil {
		writeMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProposal(c *gin.Context) {
	p, err := s.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleListProposals(c *gin.Context) {
	filters := mutation.Filters{SpecID: c.Query("spec_id")}
	if status := c.Query("status"); status != "" {
		st := mutation.Status(status)
		filters.Status = &st
	}

	proposals, err := s.Store.List(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func writeMutationError(c *gin.Context, err error) {
	var conflictErr *mutation.ConflictError
	switch {
	case errors.Is(err, mutation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
