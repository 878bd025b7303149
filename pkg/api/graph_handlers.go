package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

func (s *Server) handleListNodes(c *gin.Context) {
	filter := graph.NodeFilter{
		Kind:   graph.NodeKind(c.Query("kind")),
		Status: graph.NodeStatus(c.Query("status")),
	}

	nodes, err := s.Graph.QueryNodes(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) handleGetNode(c *gin.Context) {
	node, err := s.Graph.GetNode(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) handleListEdges(c *gin.Context) {
	filter := graph.EdgeFilter{
		Kind:     graph.EdgeKind(c.Query("kind")),
		SourceID: c.Query("source_id"),
		TargetID: c.Query("target_id"),
	}

	edges, err := s.Graph.QueryEdges(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	k := 10
	if kStr := c.Query("k"); kStr != "" {
		if parsed, ok := parsePositiveInt(kStr); ok {
			k = parsed
		}
	}

	results, err := s.Index.Search(c.Request.Context(), query, k, indexFiltersFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
