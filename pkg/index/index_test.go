package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

type fakeNodeSource struct {
	nodes []*graph.Node
}

func (f *fakeNodeSource) QueryNodes(_ context.Context, _ graph.NodeFilter) ([]*graph.Node, error) {
	return f.nodes, nil
}

type unavailablePrimary struct{}

func (unavailablePrimary) Index(_ context.Context, _ []Document) error { return nil }
func (unavailablePrimary) Search(_ context.Context, _ string, _ int, _ Filters) ([]Result, error) {
	return nil, ErrBackendUnavailable
}

func TestIndex_DegradesToLexicalOnPrimaryFailure(t *testing.T) {
	source := &fakeNodeSource{nodes: []*graph.Node{
		{ID: "n1", Name: "auth", Description: "authentication"},
	}}
	idx := New(source, unavailablePrimary{})
	require.NoError(t, idx.Refresh(context.Background()))

	results, err := idx.Search(context.Background(), "auth", 5, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].Node.ID)
}

func TestIndex_NoPrimaryConfigured_UsesLexicalDirectly(t *testing.T) {
	source := &fakeNodeSource{nodes: []*graph.Node{
		{ID: "n1", Name: "billing", Description: "invoices"},
	}}
	idx := New(source, nil)
	require.NoError(t, idx.Refresh(context.Background()))

	results, err := idx.Search(context.Background(), "billing", 5, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
