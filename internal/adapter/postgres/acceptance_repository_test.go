package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverpulse/coverpulse/internal/domain"
)

func testAcceptanceRecord() domain.AcceptanceRecord {
	verified := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.AcceptanceRecord{
		ID:                uuid.New(),
		ProviderID:        uuid.New(),
		PlanID:            uuid.New(),
		Status:            domain.StatusAccepted,
		Score:             80,
		Level:             domain.LevelHigh,
		VerificationCount: 4,
		LastVerifiedAt:    &verified,
		CreatedAt:         verified,
		UpdatedAt:         verified,
		ExpiresAt:         verified.AddDate(0, 6, 0),
	}
}

func TestAcceptanceRepo_GetByPair(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := testAcceptanceRecord()
	mock.ExpectQuery("SELECT id, provider_id, plan_id, status").
		WithArgs(rec.ProviderID, rec.PlanID).
		WillReturnRows(acceptanceRow(rec))

	repo := NewAcceptanceRepo(mock)
	got, err := repo.GetByPair(context.Background(), rec.ProviderID, rec.PlanID)

	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Score, got.Score)
	assert.Equal(t, rec.Level, got.Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_GetByPair_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, provider_id, plan_id, status").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(acceptanceColumnNames))

	repo := NewAcceptanceRepo(mock)
	_, err = repo.GetByPair(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrAcceptanceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_ListScorable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := testAcceptanceRecord()
	second := testAcceptanceRecord()
	rows := acceptanceRow(first).AddRow(
		second.ID, second.ProviderID, second.PlanID, second.Status, second.Score, second.Level,
		second.VerificationCount, second.LastVerifiedAt, second.CreatedAt, second.UpdatedAt, second.ExpiresAt,
	)

	afterID := uuid.Nil
	mock.ExpectQuery("SELECT id, provider_id, plan_id, status").
		WithArgs(afterID, 100).
		WillReturnRows(rows)

	repo := NewAcceptanceRepo(mock)
	records, err := repo.ListScorable(context.Background(), afterID, 100)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_ApplyRescore_Changed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := testAcceptanceRecord()
	rescore := domain.Rescore{
		Status: rec.Status, Score: 55, Level: domain.LevelMedium,
		VerificationCount: rec.VerificationCount, LastVerifiedAt: rec.LastVerifiedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	mock.ExpectExec("UPDATE acceptance_records").
		WithArgs(rec.ID, rescore.Status, rescore.Score, rescore.Level,
			rescore.VerificationCount, rescore.LastVerifiedAt, rescore.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewAcceptanceRepo(mock)
	changed, err := repo.ApplyRescore(context.Background(), rec.ID, rescore)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_ApplyRescore_NoOpWhenCurrent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := testAcceptanceRecord()

	mock.ExpectExec("UPDATE acceptance_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewAcceptanceRepo(mock)
	changed, err := repo.ApplyRescore(context.Background(), rec.ID, domain.Rescore{
		Status: rec.Status, Score: rec.Score, Level: rec.Level,
		VerificationCount: rec.VerificationCount, LastVerifiedAt: rec.LastVerifiedAt,
		ExpiresAt: rec.ExpiresAt,
	})

	require.NoError(t, err)
	assert.False(t, changed, "an identical rescore must not count as a change")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_DeleteExpired_DryRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(now, 500).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewAcceptanceRepo(mock)
	count, err := repo.DeleteExpired(context.Background(), now, 500, true)

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRepo_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM acceptance_records").
		WithArgs(now, 500).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	repo := NewAcceptanceRepo(mock)
	count, err := repo.DeleteExpired(context.Background(), now, 500, false)

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
