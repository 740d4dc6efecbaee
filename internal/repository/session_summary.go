package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/models"
)

// SessionSummaryRepository 会话摘要仓储接口
type SessionSummaryRepository interface {
	BaseRepository
	Create(ctx context.Context, summary *models.SessionSummary) error
	BatchCreate(ctx context.Context, summaries []*models.SessionSummary) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	FindByRunID(ctx context.Context, runID string, p *Pagination) ([]*models.SessionSummary, error)
	GetRunStatistics(ctx context.Context, runID string) (*RunStatistics, error)
}

// RunStatistics 一次运行的聚合统计
type RunStatistics struct {
	TotalSessions  int64   `json:"total_sessions"`
	TotalSpins     int64   `json:"total_spins"`
	TotalBet       float64 `json:"total_bet"`
	TotalWin       float64 `json:"total_win"`
	OverallRTP     float64 `json:"overall_rtp"`
	BonusSessions  int64   `json:"bonus_sessions"`
	AverageSpins   float64 `json:"average_spins"`
	BigWinCount    int64   `json:"big_win_count"`
	FreeSpinsCount int64   `json:"free_spins_count"`
}

// sessionSummaryRepo 会话摘要仓储实现
type sessionSummaryRepo struct {
	*BaseRepo
}

// NewSessionSummaryRepository 创建会话摘要仓储
func NewSessionSummaryRepository(db *gorm.DB) SessionSummaryRepository {
	return &sessionSummaryRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建会话摘要
func (r *sessionSummaryRepo) Create(ctx context.Context, summary *models.SessionSummary) error {
	return r.db.WithContext(ctx).Create(summary).Error
}

// BatchCreate 批量创建会话摘要
func (r *sessionSummaryRepo) BatchCreate(ctx context.Context, summaries []*models.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(summaries, 100).Error
}

// FindBySessionID 根据会话ID查找
func (r *sessionSummaryRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	var summary models.SessionSummary
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// FindByRunID 根据运行ID查找（分页）
func (r *sessionSummaryRepo) FindByRunID(ctx context.Context, runID string, p *Pagination) ([]*models.SessionSummary, error) {
	var summaries []*models.SessionSummary

	r.db.WithContext(ctx).
		Model(&models.SessionSummary{}).
		Where("run_id = ?", runID).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at asc").
		Scopes(Paginate(p)).
		Find(&summaries).Error

	return summaries, err
}

// GetRunStatistics 聚合一次运行的统计数据
// RTP只按付费旋转的投注计算，免费旋转的派彩计入总赢
func (r *sessionSummaryRepo) GetRunStatistics(ctx context.Context, runID string) (*RunStatistics, error) {
	var stats RunStatistics

	err := r.db.WithContext(ctx).
		Model(&models.SessionSummary{}).
		Where("run_id = ?", runID).
		Select(
			"COUNT(*) as total_sessions",
			"COALESCE(SUM(total_spins), 0) as total_spins",
			"COALESCE(SUM(total_bet), 0) as total_bet",
			"COALESCE(SUM(total_win), 0) as total_win",
			"COALESCE(SUM(big_win_count), 0) as big_win_count",
			"COALESCE(SUM(free_spins_count), 0) as free_spins_count",
		).
		Row().Scan(
		&stats.TotalSessions,
		&stats.TotalSpins,
		&stats.TotalBet,
		&stats.TotalWin,
		&stats.BigWinCount,
		&stats.FreeSpinsCount,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalBet > 0 {
		stats.OverallRTP = stats.TotalWin / stats.TotalBet * 100
	}
	if stats.TotalSessions > 0 {
		stats.AverageSpins = float64(stats.TotalSpins) / float64(stats.TotalSessions)
	}

	r.db.WithContext(ctx).
		Model(&models.SessionSummary{}).
		Where("run_id = ? AND bonus_triggered > 0", runID).
		Count(&stats.BonusSessions)

	return &stats, nil
}

// WithTx 使用事务
func (r *sessionSummaryRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &sessionSummaryRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
