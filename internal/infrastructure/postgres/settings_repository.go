package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// SettingsRepository implements repository.Settings against the
// collaborator-owned settings key/value table. Lookups fail soft: any
// missing key, parse failure, or database error resolves to the
// caller-supplied fallback so ad decisioning keeps working when the
// settings store is unavailable.
type SettingsRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewSettingsRepository creates a new SettingsRepository instance.
func NewSettingsRepository(db DBTX, logger *slog.Logger) *SettingsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsRepository{db: db, logger: logger}
}

// Get returns the raw value for key, or fallback when absent.
func (r *SettingsRepository) Get(ctx context.Context, key, fallback string) string {
	const query = `SELECT value FROM settings WHERE key = $1`

	var value string
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("settings lookup failed, using fallback",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return fallback
	}

	return value
}

// GetInt returns the value for key parsed as an integer, or fallback.
func (r *SettingsRepository) GetInt(ctx context.Context, key string, fallback int) int {
	raw := r.Get(ctx, key, "")
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		r.logger.Debug("setting is not an integer, using fallback",
			slog.String("key", key),
			slog.String("value", raw),
		)
		return fallback
	}
	return v
}

// GetFloat returns the value for key parsed as a float, or fallback.
func (r *SettingsRepository) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	raw := r.Get(ctx, key, "")
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.logger.Debug("setting is not a number, using fallback",
			slog.String("key", key),
			slog.String("value", raw),
		)
		return fallback
	}
	return v
}

// GetBool returns the value for key parsed as a boolean, or fallback.
func (r *SettingsRepository) GetBool(ctx context.Context, key string, fallback bool) bool {
	raw := r.Get(ctx, key, "")
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.logger.Debug("setting is not a boolean, using fallback",
			slog.String("key", key),
			slog.String("value", raw),
		)
		return fallback
	}
	return v
}

// Compile-time verification that SettingsRepository implements repository.Settings.
var _ repository.Settings = (*SettingsRepository)(nil)
