package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreativeRepository implements repository.AdCatalog against the
// collaborator-owned ad_creatives table. All access is read-only.
type CreativeRepository struct {
	db DBTX
}

// NewCreativeRepository creates a new CreativeRepository instance.
func NewCreativeRepository(db DBTX) *CreativeRepository {
	return &CreativeRepository{db: db}
}

// ListActive returns all enabled creatives, heaviest first.
func (r *CreativeRepository) ListActive(ctx context.Context) ([]*model.AdCreative, error) {
	const query = `
		SELECT id, weight, force_display, media_key, segment_keys, enabled, created_at, updated_at
		FROM ad_creatives
		WHERE enabled = true
		ORDER BY weight DESC, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active creatives: %w", err)
	}
	defer rows.Close()

	var creatives []*model.AdCreative
	for rows.Next() {
		creative, err := scanCreative(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan creative: %w", err)
		}
		creatives = append(creatives, creative)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating creatives: %w", err)
	}

	return creatives, nil
}

// GetByID retrieves a creative by its identifier.
func (r *CreativeRepository) GetByID(ctx context.Context, id string) (*model.AdCreative, error) {
	const query = `
		SELECT id, weight, force_display, media_key, segment_keys, enabled, created_at, updated_at
		FROM ad_creatives
		WHERE id = $1
	`

	creative, err := scanCreative(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrCreativeNotFound
		}
		return nil, fmt.Errorf("failed to get creative by ID: %w", err)
	}

	return creative, nil
}

// scanCreative scans a single row into an AdCreative model.
func scanCreative(row pgx.Row) (*model.AdCreative, error) {
	var (
		creative    model.AdCreative
		mediaKey    *string
		segmentKeys []string
	)

	err := row.Scan(
		&creative.ID,
		&creative.Weight,
		&creative.ForceDisplay,
		&mediaKey,
		&segmentKeys,
		&creative.Enabled,
		&creative.CreatedAt,
		&creative.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mediaKey != nil {
		creative.MediaKey = *mediaKey
	}
	creative.SegmentKeys = segmentKeys

	return &creative, nil
}

// Compile-time verification that CreativeRepository implements repository.AdCatalog.
var _ repository.AdCatalog = (*CreativeRepository)(nil)
