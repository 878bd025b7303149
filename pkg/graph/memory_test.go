package graph

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGetNode(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	n := &Node{Kind: NodeKindModule, Name: "auth"}
	require.NoError(t, repo.CreateNode(ctx, n))
	assert.NotEmpty(t, n.ID)

	got, err := repo.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth", got.Name)

	// Mutating the returned node must not affect the stored copy.
	got.Name = "mutated"
	again, err := repo.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth", again.Name)
}

func TestMemoryRepository_GetNode_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.GetNode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestMemoryRepository_UpdateNode_PartialPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	n := &Node{Kind: NodeKindModule, Name: "auth", Description: "original"}
	require.NoError(t, repo.CreateNode(ctx, n))

	newName := "auth-v2"
	updated, err := repo.UpdateNode(ctx, n.ID, NodePatch{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "auth-v2", updated.Name)
	assert.Equal(t, "original", updated.Description, "unset fields must be preserved")
}

func TestMemoryRepository_CreateEdge_DanglingReference(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	n := &Node{Kind: NodeKindModule, Name: "auth"}
	require.NoError(t, repo.CreateNode(ctx, n))

	err := repo.CreateEdge(ctx, &Edge{SourceID: n.ID, TargetID: "missing", Kind: EdgeKindDependsOn})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingReference)

	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "target", refErr.Missing)
}

func TestMemoryRepository_DeleteNode_CascadesEdges(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := &Node{Kind: NodeKindModule, Name: "a"}
	b := &Node{Kind: NodeKindModule, Name: "b"}
	require.NoError(t, repo.CreateNode(ctx, a))
	require.NoError(t, repo.CreateNode(ctx, b))

	e := &Edge{SourceID: a.ID, TargetID: b.ID, Kind: EdgeKindDependsOn}
	require.NoError(t, repo.CreateEdge(ctx, e))

	require.NoError(t, repo.DeleteNode(ctx, a.ID))

	_, err := repo.GetNode(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	edges, err := repo.QueryEdges(ctx, EdgeFilter{})
	require.NoError(t, err)
	assert.Empty(t, edges, "cascade delete must remove incident edges")
}

func TestMemoryRepository_QueryNodes_FilterByKindAndMetadata(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateNode(ctx, &Node{Kind: NodeKindModule, Name: "a", Metadata: map[string]string{"team": "core"}}))
	require.NoError(t, repo.CreateNode(ctx, &Node{Kind: NodeKindModule, Name: "b", Metadata: map[string]string{"team": "infra"}}))
	require.NoError(t, repo.CreateNode(ctx, &Node{Kind: NodeKindRoute, Name: "c", Metadata: map[string]string{"team": "core"}}))

	out, err := repo.QueryNodes(ctx, NodeFilter{Kind: NodeKindModule, Metadata: map[string]string{"team": "core"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Name)
}

func TestMemoryRepository_Snapshot_RestrictedAndFull(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := &Node{Kind: NodeKindModule, Name: "a"}
	b := &Node{Kind: NodeKindModule, Name: "b"}
	require.NoError(t, repo.CreateNode(ctx, a))
	require.NoError(t, repo.CreateNode(ctx, b))

	full, err := repo.Snapshot(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, full.Nodes, 2)

	restricted, err := repo.Snapshot(ctx, []string{a.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, restricted.Nodes, 1)
	assert.Contains(t, restricted.Nodes, a.ID)
}

// TestNode_Clone_DeepCopiesReferenceFields uses cmp.Diff rather than
// testify's assert.Equal so a future field added to Node that isn't deep
// copied shows up as a readable diff instead of a flat boolean failure.
func TestNode_Clone_DeepCopiesReferenceFields(t *testing.T) {
	n := &Node{
		ID:        "n1",
		Kind:      NodeKindModule,
		Name:      "auth",
		Metadata:  map[string]string{"team": "core"},
		Embedding: []float32{0.1, 0.2, 0.3},
	}

	clone := n.Clone()
	if diff := cmp.Diff(n, clone, cmpopts.IgnoreFields(Node{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Fatalf("clone diverged from original before mutation (-want +got):\n%s", diff)
	}

	clone.Metadata["team"] = "infra"
	clone.Embedding[0] = 9.9
	assert.Equal(t, "core", n.Metadata["team"], "cloning must not share the metadata map")
	assert.Equal(t, float32(0.1), n.Embedding[0], "cloning must not share the embedding slice")
}
