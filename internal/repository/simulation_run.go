package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/models"
)

// SimulationRunRepository 模拟运行仓储接口
type SimulationRunRepository interface {
	BaseRepository
	Create(ctx context.Context, run *models.SimulationRun) error
	FindByRunID(ctx context.Context, runID string) (*models.SimulationRun, error)
	List(ctx context.Context, p *Pagination) ([]*models.SimulationRun, error)
	Complete(ctx context.Context, runID string, totalSpins int64, totalBet, totalWin, overallRTP float64) error
	MarkFailed(ctx context.Context, runID string) error
}

// simulationRunRepo 模拟运行仓储实现
type simulationRunRepo struct {
	*BaseRepo
}

// NewSimulationRunRepository 创建模拟运行仓储
func NewSimulationRunRepository(db *gorm.DB) SimulationRunRepository {
	return &simulationRunRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建模拟运行记录
func (r *simulationRunRepo) Create(ctx context.Context, run *models.SimulationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// FindByRunID 根据运行ID查找
func (r *simulationRunRepo) FindByRunID(ctx context.Context, runID string) (*models.SimulationRun, error) {
	var run models.SimulationRun
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 列出模拟运行（分页，最近的在前）
func (r *simulationRunRepo) List(ctx context.Context, p *Pagination) ([]*models.SimulationRun, error) {
	var runs []*models.SimulationRun

	r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Scopes(Paginate(p)).
		Find(&runs).Error

	return runs, err
}

// Complete 标记运行完成并写入汇总指标
func (r *simulationRunRepo) Complete(ctx context.Context, runID string, totalSpins int64, totalBet, totalWin, overallRTP float64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":      "completed",
			"ended_at":    &now,
			"total_spins": totalSpins,
			"total_bet":   totalBet,
			"total_win":   totalWin,
			"overall_rtp": overallRTP,
		}).Error
}

// MarkFailed 标记运行失败
func (r *simulationRunRepo) MarkFailed(ctx context.Context, runID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":   "failed",
			"ended_at": &now,
		}).Error
}

// WithTx 使用事务
func (r *simulationRunRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &simulationRunRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
