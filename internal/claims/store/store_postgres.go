package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attesto/internal/claims/models"
	"attesto/internal/platform/database"
	outboxpg "attesto/pkg/platform/outbox/store/postgres"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// PostgresStore persists claims in PostgreSQL. State changes and their outbox
// events commit in one transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claim store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimColumns = `id, owner, issuer, title, content, career_type, status, career, created_at, decided_at`

func (s *PostgresStore) Create(ctx context.Context, claim *models.Claim) (models.ClaimID, error) {
	if claim == nil {
		return "", fmt.Errorf("claim is required: %w", sentinel.ErrInvalidInput)
	}
	record := newPendingRecord(ctx, claim)
	contentBytes, err := json.Marshal(record.Content)
	if err != nil {
		return "", fmt.Errorf("marshal claim content: %w", err)
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO claims (id, owner, issuer, title, content, career_type, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			record.ID.String(),
			record.Owner,
			record.Issuer,
			record.Title,
			contentBytes,
			string(record.CareerType),
			string(record.Status),
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		return appendEvent(ctx, tx, models.EventClaimCreated, record)
	})
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, did string) ([]*models.Claim, error) {
	return s.list(ctx, `SELECT `+claimColumns+` FROM claims WHERE owner = $1 ORDER BY created_at, id`, did)
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, did string, status *models.Status) ([]*models.Claim, error) {
	if status == nil {
		return s.list(ctx, `SELECT `+claimColumns+` FROM claims WHERE issuer = $1 ORDER BY created_at, id`, did)
	}
	return s.list(ctx, `SELECT `+claimColumns+` FROM claims WHERE issuer = $1 AND status = $2 ORDER BY created_at, id`, did, string(*status))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.ClaimID) (*models.Claim, error) {
	c, err := scanClaim(s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim by id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindMatching(ctx context.Context, id models.ClaimID, pre models.Precondition) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE id = $1 AND issuer = $2 AND status = $3 AND ($4 = '' OR career_type = $4)`
	c, err := scanClaim(s.db.QueryRowContext(ctx, query, id.String(), pre.Issuer, string(pre.Status), string(pre.CareerType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find matching claim: %w", err)
	}
	return c, nil
}

// ConditionalUpdate is a single UPDATE guarded by the precondition in its WHERE
// clause. Postgres re-evaluates the predicate after waiting on a concurrent writer's
// row lock, so the loser of a race matches zero rows.
func (s *PostgresStore) ConditionalUpdate(ctx context.Context, id models.ClaimID, pre models.Precondition, patch models.Patch) (*models.Claim, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	var career any // NULL unless accepting
	if patch.Career != nil {
		careerBytes, err := json.Marshal(patch.Career)
		if err != nil {
			return nil, fmt.Errorf("marshal career: %w", err)
		}
		career = string(careerBytes)
	}
	decidedAt := requestcontext.Now(ctx).UTC()

	var updated *models.Claim
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		query := `
			UPDATE claims SET status = $5, career = $6, decided_at = $7
			WHERE id = $1 AND issuer = $2 AND status = $3 AND ($4 = '' OR career_type = $4)
			RETURNING ` + claimColumns
		c, err := scanClaim(tx.QueryRowContext(ctx, query,
			id.String(),
			pre.Issuer,
			string(pre.Status),
			string(pre.CareerType),
			string(patch.Status),
			career,
			decidedAt,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("conditional update claim: %w", err)
		}
		updated = c
		return appendEvent(ctx, tx, models.EventForStatus(c.Status), c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, t models.EventType, c *models.Claim) error {
	entry, err := newOutboxEntry(ctx, t, c)
	if err != nil {
		return err
	}
	return outboxpg.AppendTx(ctx, tx, entry)
}

type claimRow interface {
	Scan(dest ...any) error
}

func scanClaim(row claimRow) (*models.Claim, error) {
	var (
		c            models.Claim
		id           string
		contentBytes []byte
		careerBytes  []byte
		careerType   string
		status       string
		decidedAt    sql.NullTime
		createdAt    time.Time
	)
	if err := row.Scan(&id, &c.Owner, &c.Issuer, &c.Title, &contentBytes, &careerType, &status, &careerBytes, &createdAt, &decidedAt); err != nil {
		return nil, err
	}
	c.ID = models.ClaimID(id)
	c.CareerType = models.CareerType(careerType)
	c.Status = models.Status(status)
	c.CreatedAt = createdAt.UTC()
	if decidedAt.Valid {
		t := decidedAt.Time.UTC()
		c.DecidedAt = &t
	}
	if err := json.Unmarshal(contentBytes, &c.Content); err != nil {
		return nil, fmt.Errorf("unmarshal claim content: %w", err)
	}
	if len(careerBytes) > 0 {
		var career models.Career
		if err := json.Unmarshal(careerBytes, &career); err != nil {
			return nil, fmt.Errorf("unmarshal claim career: %w", err)
		}
		c.Career = &career
	}
	return &c, nil
}
