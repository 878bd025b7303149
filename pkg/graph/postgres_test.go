package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/database"
)

// newTestRepository starts a disposable Postgres container, applies the
// embedded migrations via database.NewClient, and returns a Repository
// backed by it. Tests exercise the exact same behavioral contract as
// memory_test.go so the two implementations can't be told apart.
func newTestRepository(t *testing.T) Repository {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := database.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	}

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewPostgresRepository(client.Pool())
}

func TestPostgresRepository_CreateAndGetNode(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	n := &Node{Kind: NodeKindModule, Name: "auth", Metadata: map[string]string{"team": "core"}}
	require.NoError(t, repo.CreateNode(ctx, n))
	assert.NotEmpty(t, n.ID)

	got, err := repo.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth", got.Name)
	assert.Equal(t, "core", got.Metadata["team"])
}

func TestPostgresRepository_CreateEdge_DanglingReference(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	n := &Node{Kind: NodeKindModule, Name: "auth"}
	require.NoError(t, repo.CreateNode(ctx, n))

	err := repo.CreateEdge(ctx, &Edge{SourceID: n.ID, TargetID: "missing", Kind: EdgeKindDependsOn})
	assert.Error(t, err)
}

func TestPostgresRepository_DeleteNode_CascadesEdges(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a := &Node{Kind: NodeKindModule, Name: "a"}
	b := &Node{Kind: NodeKindModule, Name: "b"}
	require.NoError(t, repo.CreateNode(ctx, a))
	require.NoError(t, repo.CreateNode(ctx, b))
	require.NoError(t, repo.CreateEdge(ctx, &Edge{SourceID: a.ID, TargetID: b.ID, Kind: EdgeKindDependsOn}))

	require.NoError(t, repo.DeleteNode(ctx, a.ID))

	_, err := repo.GetNode(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	edges, err := repo.QueryEdges(ctx, EdgeFilter{})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestPostgresRepository_UpdateNode_PartialPatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	n := &Node{Kind: NodeKindModule, Name: "auth", Description: "original"}
	require.NoError(t, repo.CreateNode(ctx, n))

	newName := "auth-v2"
	updated, err := repo.UpdateNode(ctx, n.ID, NodePatch{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "auth-v2", updated.Name)
	assert.Equal(t, "original", updated.Description)
}

func TestPostgresRepository_Snapshot(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a := &Node{Kind: NodeKindModule, Name: "a"}
	b := &Node{Kind: NodeKindModule, Name: "b"}
	require.NoError(t, repo.CreateNode(ctx, a))
	require.NoError(t, repo.CreateNode(ctx, b))

	snap, err := repo.Snapshot(ctx, []string{a.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 1)
	assert.Contains(t, snap.Nodes, a.ID)
}
