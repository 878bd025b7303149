package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a pgx-backed Store implementation targeting the
// mutation_proposals table (pkg/database/migrations). Transition uses
// SELECT ... FOR UPDATE so the single-writer invariant holds even across
// multiple engine replicas sharing one database, not just within one
// process (spec.md §3 "exactly one writer").
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-migrated pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, p *Proposal, owner string) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Status = StatusProposed

	changes, err := json.Marshal(p.ProposedChanges)
	if err != nil {
		return fmt.Errorf("marshal proposed_changes: %w", err)
	}
	impact, err := json.Marshal(p.ImpactAnalysis)
	if err != nil {
		return fmt.Errorf("marshal impact_analysis: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO mutation_proposals
			(proposal_id, spec_id, operation_type, current_version, proposed_changes,
			 reasoning, confidence, impact_analysis, status, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ProposalID, p.SpecID, string(p.OperationType), p.CurrentVersion, changes,
		p.Reasoning, p.Confidence, impact, string(p.Status), owner, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal %s: %w", p.ProposalID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, proposalID string) (*Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT proposal_id, spec_id, operation_type, current_version, proposed_changes,
		       reasoning, confidence, impact_analysis, status, created_at, updated_at
		FROM mutation_proposals WHERE proposal_id = $1`, proposalID)
	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context, filters Filters) ([]*Proposal, error) {
	query := `
		SELECT proposal_id, spec_id, operation_type, current_version, proposed_changes,
		       reasoning, confidence, impact_analysis, status, created_at, updated_at
		FROM mutation_proposals WHERE 1=1`
	args := []any{}
	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.SpecID != "" {
		args = append(args, filters.SpecID)
		query += fmt.Sprintf(" AND spec_id = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, proposalID string, from, to Status, owner, nextOwner string, payload Patch) (*Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentStatus, currentOwner string
	err = tx.QueryRow(ctx, `
		SELECT status, owner FROM mutation_proposals WHERE proposal_id = $1 FOR UPDATE`,
		proposalID).Scan(&currentStatus, &currentOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock proposal %s: %w", proposalID, err)
	}
	if Status(currentStatus) != from {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrIllegalTransition}
	}
	if currentOwner != owner {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrNotOwner}
	}
	if !allowedTransitions[from][to] {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrIllegalTransition}
	}

	finalOwner := currentOwner
	if to.terminal() {
		finalOwner = ""
	} else if nextOwner != "" {
		finalOwner = nextOwner
	}

	setClauses := "status = $1, owner = $2, updated_at = $3"
	args := []any{string(to), finalOwner, time.Now()}
	if payload.ImpactAnalysis != nil {
		b, err := json.Marshal(*payload.ImpactAnalysis)
		if err != nil {
			return nil, fmt.Errorf("marshal impact_analysis: %w", err)
		}
		args = append(args, b)
		setClauses += fmt.Sprintf(", impact_analysis = $%d", len(args))
	}
	if payload.ProposedChanges != nil {
		b, err := json.Marshal(payload.ProposedChanges)
		if err != nil {
			return nil, fmt.Errorf("marshal proposed_changes: %w", err)
		}
		args = append(args, b)
		setClauses += fmt.Sprintf(", proposed_changes = $%d", len(args))
	}
	if payload.Confidence != nil {
		args = append(args, *payload.Confidence)
		setClauses += fmt.Sprintf(", confidence = $%d", len(args))
	}
	args = append(args, proposalID)

	_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE mutation_proposals SET %s WHERE proposal_id = $%d`, setClauses, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("update proposal %s: %w", proposalID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	return s.Get(ctx, proposalID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*Proposal, error) {
	var p Proposal
	var changes, impact []byte
	var operationType, status string
	if err := row.Scan(
		&p.ProposalID, &p.SpecID, &operationType, &p.CurrentVersion, &changes,
		&p.Reasoning, &p.Confidence, &impact, &status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.OperationType = OperationType(operationType)
	p.Status = Status(status)
	if err := json.Unmarshal(changes, &p.ProposedChanges); err != nil {
		return nil, fmt.Errorf("unmarshal proposed_changes: %w", err)
	}
	if err := json.Unmarshal(impact, &p.ImpactAnalysis); err != nil {
		return nil, fmt.Errorf("unmarshal impact_analysis: %w", err)
	}
	return &p, nil
}
