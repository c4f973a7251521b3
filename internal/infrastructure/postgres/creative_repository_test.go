package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

func TestCreativeRepository_ListActive(t *testing.T) {
	now := time.Now()
	mediaKey := "creatives/spot-a/source.mp4"

	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		want    int
		wantErr error
	}{
		{
			name: "returns enabled creatives",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "weight", "force_display", "media_key", "segment_keys", "enabled", "created_at", "updated_at",
				}).AddRow(
					"spot-a", 3, false, &mediaKey, []string(nil), true, now, now,
				).AddRow(
					"spot-b", 1, false, (*string)(nil), []string{"creatives/spot-b/000.ts", "creatives/spot-b/001.ts"}, true, now, now,
				)
				mock.ExpectQuery("SELECT .* FROM ad_creatives").
					WillReturnRows(rows)
			},
			want: 2,
		},
		{
			name: "empty catalog is not an error",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "weight", "force_display", "media_key", "segment_keys", "enabled", "created_at", "updated_at",
				})
				mock.ExpectQuery("SELECT .* FROM ad_creatives").
					WillReturnRows(rows)
			},
			want: 0,
		},
		{
			name: "database error",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT .* FROM ad_creatives").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("failed to query active creatives"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCreativeRepository(mock)
			creatives, err := repo.ListActive(context.Background())

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("ListActive() expected error, got nil")
					return
				}
				if !containsError(err, tt.wantErr) {
					t.Errorf("ListActive() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ListActive() unexpected error = %v", err)
			}
			if len(creatives) != tt.want {
				t.Errorf("ListActive() returned %d creatives, want %d", len(creatives), tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCreativeRepository_ListActive_ScansFields(t *testing.T) {
	now := time.Now()
	mediaKey := "creatives/spot-a/source.mp4"

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "weight", "force_display", "media_key", "segment_keys", "enabled", "created_at", "updated_at",
	}).AddRow(
		"spot-a", 5, true, &mediaKey, []string{"creatives/spot-a/000.ts"}, true, now, now,
	)
	mock.ExpectQuery("SELECT .* FROM ad_creatives").WillReturnRows(rows)

	repo := NewCreativeRepository(mock)
	creatives, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(creatives) != 1 {
		t.Fatalf("got %d creatives, want 1", len(creatives))
	}

	c := creatives[0]
	if c.ID != "spot-a" {
		t.Errorf("ID = %q, want spot-a", c.ID)
	}
	if c.Weight != 5 {
		t.Errorf("Weight = %d, want 5", c.Weight)
	}
	if !c.ForceDisplay {
		t.Error("ForceDisplay = false, want true")
	}
	if c.MediaKey != mediaKey {
		t.Errorf("MediaKey = %q, want %q", c.MediaKey, mediaKey)
	}
	if len(c.SegmentKeys) != 1 {
		t.Errorf("SegmentKeys = %v, want one entry", c.SegmentKeys)
	}
	if !c.HasSource() {
		t.Error("HasSource() = false for creative with media key")
	}
}

func TestCreativeRepository_GetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		id      string
		mockFn  func(mock pgxmock.PgxPoolIface)
		want    *model.AdCreative
		wantErr error
	}{
		{
			name: "successful retrieval",
			id:   "spot-a",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mediaKey := "creatives/spot-a/source.mp4"
				rows := pgxmock.NewRows([]string{
					"id", "weight", "force_display", "media_key", "segment_keys", "enabled", "created_at", "updated_at",
				}).AddRow(
					"spot-a", 2, false, &mediaKey, []string(nil), true, now, now,
				)
				mock.ExpectQuery("SELECT .* FROM ad_creatives WHERE id").
					WithArgs("spot-a").
					WillReturnRows(rows)
			},
			want: &model.AdCreative{ID: "spot-a", Weight: 2},
		},
		{
			name: "creative not found",
			id:   "missing",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT .* FROM ad_creatives WHERE id").
					WithArgs("missing").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: repository.ErrCreativeNotFound,
		},
		{
			name: "database error",
			id:   "spot-a",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT .* FROM ad_creatives WHERE id").
					WithArgs("spot-a").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("failed to get creative by ID"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCreativeRepository(mock)
			got, err := repo.GetByID(context.Background(), tt.id)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("GetByID() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !containsError(err, tt.wantErr) {
					t.Errorf("GetByID() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("GetByID() unexpected error = %v", err)
			}
			if got.ID != tt.want.ID || got.Weight != tt.want.Weight {
				t.Errorf("GetByID() = %+v, want ID %q weight %d", got, tt.want.ID, tt.want.Weight)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

// containsError reports whether err's message starts with expected's message.
func containsError(err, expected error) bool {
	if err == nil || expected == nil {
		return false
	}
	return err.Error() != "" && expected.Error() != "" &&
		len(err.Error()) >= len(expected.Error()) &&
		err.Error()[:len(expected.Error())] == expected.Error()
}
