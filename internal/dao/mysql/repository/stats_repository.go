package repository

import (
	"context"

	"just_sending_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository 创建统计 Repository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

// FindById 根据桶 ID 查找统计
func (r *statsRepository) FindById(ctx context.Context, id int64) (*model.Stats, error) {
	var stats model.Stats
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stats).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询统计 id=%d", id)
	}
	return &stats, nil
}

// SaveWithVersion 乐观锁写入
// Version == 1 表示新桶：插入，主键冲突说明被别人抢先，返回 false
// 其他情况：仅当库中版本等于 Version-1 时更新
func (r *statsRepository) SaveWithVersion(ctx context.Context, stats *model.Stats) (bool, error) {
	db := r.db.WithContext(ctx)
	if stats.Version <= 1 {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(stats)
		if res.Error != nil {
			return false, wrapDBErrorf(res.Error, "插入统计 id=%d", stats.Id)
		}
		return res.RowsAffected == 1, nil
	}

	res := db.Model(&model.Stats{}).
		Where("id = ? AND version = ?", stats.Id, stats.Version-1).
		Updates(map[string]any{
			"messages":            stats.Messages,
			"messages_size_bytes": stats.MessagesSizeBytes,
			"files":               stats.Files,
			"files_size_bytes":    stats.FilesSizeBytes,
			"devices":             stats.Devices,
			"sessions":            stats.Sessions,
			"version":             stats.Version,
		})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "更新统计 id=%d", stats.Id)
	}
	return res.RowsAffected == 1, nil
}

// FindAllExceptAllTime 除全量桶外的所有统计
func (r *statsRepository) FindAllExceptAllTime(ctx context.Context) ([]model.Stats, error) {
	stats := make([]model.Stats, 0)
	if err := r.db.WithContext(ctx).Where("id <> ?", model.StatsAllTimeId).Order("id ASC").Find(&stats).Error; err != nil {
		return nil, wrapDBError(err, "查询统计列表")
	}
	return stats, nil
}
