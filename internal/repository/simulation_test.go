package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/slot-simulator/internal/models"
)

func createTestRun(runID string) *models.SimulationRun {
	return &models.SimulationRun{
		RunID:           runID,
		Seed:            42,
		MachineCount:    2,
		PlayerCount:     3,
		SessionsPerPair: 10,
		TotalSessions:   60,
		Status:          "running",
		StartedAt:       time.Now(),
	}
}

func createTestSummary(runID, sessionID string) *models.SessionSummary {
	return &models.SessionSummary{
		RunID:          runID,
		SessionID:      sessionID,
		PlayerID:       "casual",
		MachineID:      "classic_5x3",
		TotalSpins:     100,
		WinCount:       30,
		TotalBet:       200,
		TotalWin:       190,
		TotalProfit:    -10,
		ReturnToPlayer: 95,
		StartBalance:   1000,
		EndBalance:     990,
		EndReason:      "player_decision",
		StartedAt:      time.Now(),
	}
}

func TestSimulationRunRepository_CreateAndFind(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSimulationRunRepository(db)
	ctx := context.Background()

	run := createTestRun("run-001")
	require.NoError(t, repo.Create(ctx, run))
	assert.NotZero(t, run.ID)

	found, err := repo.FindByRunID(ctx, "run-001")
	require.NoError(t, err)
	assert.Equal(t, int64(42), found.Seed)
	assert.Equal(t, "running", found.Status)

	_, err = repo.FindByRunID(ctx, "missing")
	assert.Error(t, err)
}

func TestSimulationRunRepository_Complete(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSimulationRunRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRun("run-002")))
	require.NoError(t, repo.Complete(ctx, "run-002", 6000, 12000, 11400, 95))

	found, err := repo.FindByRunID(ctx, "run-002")
	require.NoError(t, err)
	assert.Equal(t, "completed", found.Status)
	assert.Equal(t, int64(6000), found.TotalSpins)
	assert.Equal(t, 95.0, found.OverallRTP)
	assert.NotNil(t, found.EndedAt)
}

func TestSimulationRunRepository_List(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSimulationRunRepository(db)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, repo.Create(ctx, createTestRun(id)))
	}

	p := NewPagination(1, 2)
	runs, err := repo.List(ctx, p)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, int64(3), p.Total)
}

func TestSessionSummaryRepository_BatchCreateAndQuery(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionSummaryRepository(db)
	ctx := context.Background()

	summaries := []*models.SessionSummary{
		createTestSummary("run-010", "sess-1"),
		createTestSummary("run-010", "sess-2"),
		createTestSummary("run-other", "sess-3"),
	}
	require.NoError(t, repo.BatchCreate(ctx, summaries))

	found, err := repo.FindBySessionID(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "run-010", found.RunID)

	p := NewPagination(1, 10)
	byRun, err := repo.FindByRunID(ctx, "run-010", p)
	require.NoError(t, err)
	assert.Len(t, byRun, 2)
	assert.Equal(t, int64(2), p.Total)
}

func TestSessionSummaryRepository_GetRunStatistics(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSessionSummaryRepository(db)
	ctx := context.Background()

	s1 := createTestSummary("run-020", "sess-10")
	s1.TotalBet = 100
	s1.TotalWin = 90
	s1.TotalSpins = 50
	s1.BonusTriggered = 1
	s2 := createTestSummary("run-020", "sess-11")
	s2.TotalBet = 100
	s2.TotalWin = 110
	s2.TotalSpins = 150
	require.NoError(t, repo.BatchCreate(ctx, []*models.SessionSummary{s1, s2}))

	stats, err := repo.GetRunStatistics(ctx, "run-020")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSessions)
	assert.Equal(t, int64(200), stats.TotalSpins)
	assert.InDelta(t, 100.0, stats.OverallRTP, 0.001)
	assert.InDelta(t, 100.0, stats.AverageSpins, 0.001)
	assert.Equal(t, int64(1), stats.BonusSessions)
}

func TestSpinRecordRepository(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewSpinRecordRepository(db)
	ctx := context.Background()

	records := make([]*models.SpinRecord, 0, 5)
	for i := 1; i <= 5; i++ {
		records = append(records, &models.SpinRecord{
			SessionID:  "sess-20",
			SpinNumber: int64(i),
			Bet:        2,
			Payout:     float64(i % 2),
			Detail:     models.JSONMap{"grid": []interface{}{0, 1, 2}},
		})
	}
	require.NoError(t, repo.BatchCreate(ctx, records))

	count, err := repo.CountBySessionID(ctx, "sess-20")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	p := NewPagination(1, 3)
	page, err := repo.FindBySessionID(ctx, "sess-20", p)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Equal(t, int64(1), page[0].SpinNumber)
	assert.Equal(t, int64(5), p.Total)

	require.NoError(t, repo.DeleteBySessionID(ctx, "sess-20"))
	count, err = repo.CountBySessionID(ctx, "sess-20")
	require.NoError(t, err)
	assert.Zero(t, count)
}
