package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/models"
)

// SpinRecordRepository 旋转记录仓储接口
type SpinRecordRepository interface {
	BaseRepository
	BatchCreate(ctx context.Context, records []*models.SpinRecord) error
	FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.SpinRecord, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// spinRecordRepo 旋转记录仓储实现
type spinRecordRepo struct {
	*BaseRepo
}

// NewSpinRecordRepository 创建旋转记录仓储
func NewSpinRecordRepository(db *gorm.DB) SpinRecordRepository {
	return &spinRecordRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// BatchCreate 批量创建旋转记录
// 长会话的记录量很大，分批插入避免超出SQL参数上限
func (r *spinRecordRepo) BatchCreate(ctx context.Context, records []*models.SpinRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 500).Error
}

// FindBySessionID 根据会话ID查找（分页，按旋转序号升序）
func (r *spinRecordRepo) FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.SpinRecord, error) {
	var records []*models.SpinRecord

	r.db.WithContext(ctx).
		Model(&models.SpinRecord{}).
		Where("session_id = ?", sessionID).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("spin_number asc").
		Scopes(Paginate(p)).
		Find(&records).Error

	return records, err
}

// CountBySessionID 统计会话的旋转记录数
func (r *spinRecordRepo) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SpinRecord{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// DeleteBySessionID 删除会话的全部旋转记录
func (r *spinRecordRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SpinRecord{}).Error
}

// WithTx 使用事务
func (r *spinRecordRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &spinRecordRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
