package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a pgx-backed Repository implementation. It targets
// the spec_nodes/spec_edges tables created by pkg/database's embedded
// migrations. Cascade delete relies on the schema's ON DELETE CASCADE
// foreign keys so node-delete-removes-incident-edges is atomic even under
// concurrent writers.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps an already-migrated pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateNode(ctx context.Context, n *Node) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO spec_nodes (id, kind, name, description, content, spec_source, metadata, status, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, string(n.Kind), n.Name, n.Description, n.Content, n.SpecSource,
		metadata, string(n.Status), n.Embedding, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetNode(ctx context.Context, id string) (*Node, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, kind, name, description, content, spec_source, metadata, status, embedding, created_at, updated_at
		FROM spec_nodes WHERE id = $1`, id)
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateNode(ctx context.Context, id string, patch NodePatch) (*Node, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, kind, name, description, content, spec_source, metadata, status, embedding, created_at, updated_at
		FROM spec_nodes WHERE id = $1 FOR UPDATE`, id)
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}

	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.Metadata != nil {
		if n.Metadata == nil {
			n.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			n.Metadata[k] = v
		}
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.Embedding != nil {
		n.Embedding = patch.Embedding
	}
	n.UpdatedAt = time.Now()

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE spec_nodes SET name=$2, description=$3, content=$4, metadata=$5, status=$6, embedding=$7, updated_at=$8
		WHERE id = $1`,
		id, n.Name, n.Description, n.Content, metadata, string(n.Status), n.Embedding, n.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update node %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteNode(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM spec_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) CreateEdge(ctx context.Context, e *Edge) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO spec_edges (id, source_id, target_id, kind, description, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SourceID, e.TargetID, string(e.Kind), e.Description, e.Confidence, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		// FK violation on source_id/target_id surfaces as a dangling reference.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			missing := "source"
			if strings.Contains(pgErr.ConstraintName, "target_id") {
				missing = "target"
			}
			return &ReferenceError{EdgeID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Missing: missing}
		}
		return fmt.Errorf("insert edge %s: %w", e.ID, err)
	}
	return nil
}

func (r *PostgresRepository) DeleteEdge(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM spec_edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete edge %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) QueryNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	query := `SELECT id, kind, name, description, content, spec_source, metadata, status, embedding, created_at, updated_at FROM spec_nodes WHERE 1=1`
	args := []interface{}{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	for k, v := range filter.Metadata {
		args = append(args, k)
		kArg := len(args)
		args = append(args, v)
		vArg := len(args)
		query += fmt.Sprintf(" AND metadata->>$%d = $%d", kArg, vArg)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) QueryEdges(ctx context.Context, filter EdgeFilter) ([]*Edge, error) {
	query := `SELECT id, source_id, target_id, kind, description, confidence, created_at, updated_at FROM spec_edges WHERE 1=1`
	args := []interface{}{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		query += fmt.Sprintf(" AND source_id = $%d", len(args))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		query += fmt.Sprintf(" AND target_id = $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []*Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Snapshot(ctx context.Context, nodeIDs, edgeIDs []string) (*Snapshot, error) {
	snap := &Snapshot{Nodes: make(map[string]*Node), Edges: make(map[string]*Edge), TakenAt: time.Now()}

	var nodes []*Node
	var err error
	if len(nodeIDs) == 0 {
		nodes, err = r.QueryNodes(ctx, NodeFilter{})
	} else {
		rows, qerr := r.pool.Query(ctx, `
			SELECT id, kind, name, description, content, spec_source, metadata, status, embedding, created_at, updated_at
			FROM spec_nodes WHERE id = ANY($1)`, nodeIDs)
		if qerr != nil {
			return nil, fmt.Errorf("snapshot nodes: %w", qerr)
		}
		defer rows.Close()
		for rows.Next() {
			n, serr := scanNode(rows)
			if serr != nil {
				return nil, fmt.Errorf("scan node: %w", serr)
			}
			nodes = append(nodes, n)
		}
		err = rows.Err()
	}
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		snap.Nodes[n.ID] = n
	}

	var edges []*Edge
	if len(edgeIDs) == 0 {
		edges, err = r.QueryEdges(ctx, EdgeFilter{})
	} else {
		rows, qerr := r.pool.Query(ctx, `
			SELECT id, source_id, target_id, kind, description, confidence, created_at, updated_at
			FROM spec_edges WHERE id = ANY($1)`, edgeIDs)
		if qerr != nil {
			return nil, fmt.Errorf("snapshot edges: %w", qerr)
		}
		defer rows.Close()
		for rows.Next() {
			e, serr := scanEdge(rows)
			if serr != nil {
				return nil, fmt.Errorf("scan edge: %w", serr)
			}
			edges = append(edges, e)
		}
		err = rows.Err()
	}
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		snap.Edges[e.ID] = e
	}

	return snap, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var kind, status string
	var metadata []byte
	if err := row.Scan(
		&n.ID, &kind, &n.Name, &n.Description, &n.Content, &n.SpecSource,
		&metadata, &status, &n.Embedding, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Kind = NodeKind(kind)
	n.Status = NodeStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &n, nil
}

func scanEdge(row rowScanner) (*Edge, error) {
	var e Edge
	var kind string
	if err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &kind, &e.Description, &e.Confidence, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = EdgeKind(kind)
	return &e, nil
}
