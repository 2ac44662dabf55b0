// Package stats 使用统计
// 每个事件同时累加到 全量 / 年 / 月 / 日 四个桶，每个桶用版本号做乐观并发控制
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"just_sending_server/internal/dao/mysql/repository"
	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/infrastructure/metrics"
	"just_sending_server/internal/model"
	"just_sending_server/pkg/constants"
	"just_sending_server/pkg/errorx"
)

// Kind 计数字段
type Kind string

const (
	KindSessions Kind = "sessions"
	KindDevices  Kind = "devices"
	KindMessages Kind = "messages"
)

// bucket 统计桶
type bucket struct {
	id   int64
	name string
}

// Service 统计聚合
type Service struct {
	repo     repository.StatsRepository
	kv       myredis.CacheService
	cacheTTL time.Duration
	now      func() time.Time
}

// NewStatsService 创建统计服务，cacheTTL 为 ReadAll 结果的缓存时间
func NewStatsService(repo repository.StatsRepository, kv myredis.CacheService, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = constants.STATS_CACHE_TTL
	}
	return &Service{repo: repo, kv: kv, cacheTTL: cacheTTL, now: time.Now}
}

// BucketIds 计算 t 所在的 全量、年、月、日 桶 ID
// 年份取两位：2025-03-07 -> -1, 250000, 250300, 250307
func BucketIds(t time.Time) [4]int64 {
	t = t.UTC()
	yy := int64(t.Year() % 100)
	mm := int64(t.Month())
	dd := int64(t.Day())
	return [4]int64{
		model.StatsAllTimeId,
		yy * 10000,
		yy*10000 + mm*100,
		yy*10000 + mm*100 + dd,
	}
}

func (s *Service) buckets() []bucket {
	ids := BucketIds(s.now())
	return []bucket{
		{id: ids[0], name: "all"},
		{id: ids[1], name: "year"},
		{id: ids[2], name: "month"},
		{id: ids[3], name: "day"},
	}
}

// RecordEvent 某个计数字段累加 delta
func (s *Service) RecordEvent(ctx context.Context, kind Kind, delta int64) {
	s.record(ctx, func(st *model.Stats) {
		switch kind {
		case KindSessions:
			st.Sessions += delta
		case KindDevices:
			st.Devices += delta
		case KindMessages:
			st.Messages += delta
		}
	})
}

// RecordMessage 记录一条消息，fileSizeBytes 非空时同时记录一个文件
func (s *Service) RecordMessage(ctx context.Context, sizeBytes int64, fileSizeBytes *int64) {
	s.record(ctx, func(st *model.Stats) {
		st.Messages++
		st.MessagesSizeBytes += sizeBytes
		if fileSizeBytes != nil {
			st.Files++
			st.FilesSizeBytes += *fileSizeBytes
		}
	})
}

func (s *Service) record(ctx context.Context, update func(*model.Stats)) {
	for _, b := range s.buckets() {
		s.apply(ctx, b, update)
	}
}

// apply 单个桶的读取-修改-比较写入
// 冲突时只记日志，这次累加直接丢弃
func (s *Service) apply(ctx context.Context, b bucket, update func(*model.Stats)) {
	st, err := s.repo.FindById(ctx, b.id)
	if err != nil {
		if !errorx.IsNotFound(err) {
			zap.L().Error("读取统计失败", zap.Int64("id", b.id), zap.Error(err))
			return
		}
		st = &model.Stats{Id: b.id, DateCreatedUtc: s.now().UTC()}
	}

	update(st)
	st.Version++

	ok, err := s.repo.SaveWithVersion(ctx, st)
	if err != nil {
		zap.L().Error("写入统计失败", zap.Int64("id", b.id), zap.Error(err))
		return
	}
	if !ok {
		zap.L().Warn("统计版本冲突，丢弃本次累加",
			zap.Int64("id", b.id),
			zap.Int64("version", st.Version),
		)
		metrics.StatsConflict(b.name)
		return
	}
	if b.id == model.StatsAllTimeId {
		metrics.SetTotals(st)
	}
}

// AllTime 全量统计，没有数据时返回零值
func (s *Service) AllTime(ctx context.Context) (*model.Stats, error) {
	st, err := s.repo.FindById(ctx, model.StatsAllTimeId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return &model.Stats{Id: model.StatsAllTimeId}, nil
		}
		return nil, err
	}
	return st, nil
}

// ReadAll 按 年 -> 月 -> 日 分组返回除全量桶外的所有统计
// 结果缓存 cacheTTL
func (s *Service) ReadAll(ctx context.Context) ([]model.StatYear, error) {
	var cached []model.StatYear
	if ok, err := myredis.GetJSON(ctx, s.kv, constants.KEY_STATS_RAW, &cached); err != nil {
		zap.L().Warn("读取统计缓存失败", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	rows, err := s.repo.FindAllExceptAllTime(ctx)
	if err != nil {
		zap.L().Error("查询统计失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	tree := Group(rows)

	if err := myredis.SetJSON(ctx, s.kv, constants.KEY_STATS_RAW, tree, s.cacheTTL); err != nil {
		zap.L().Warn("写入统计缓存失败", zap.Error(err))
	}
	return tree, nil
}

// Group 用 6 位补零 ID 的前两位作年、中间两位作月分组，均按升序
func Group(rows []model.Stats) []model.StatYear {
	sorted := make([]model.Stats, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Id < sorted[j].Id })

	years := make([]model.StatYear, 0)
	for _, row := range sorted {
		if row.Id < 0 {
			continue
		}
		key := fmt.Sprintf("%06d", row.Id)
		year, month := key[0:2], key[2:4]

		if len(years) == 0 || years[len(years)-1].Year != year {
			years = append(years, model.StatYear{Year: year, Months: make([]model.StatMonth, 0)})
		}
		y := &years[len(years)-1]
		if len(y.Months) == 0 || y.Months[len(y.Months)-1].Month != month {
			y.Months = append(y.Months, model.StatMonth{Month: month, Days: make([]model.Stats, 0)})
		}
		m := &y.Months[len(y.Months)-1]
		m.Days = append(m.Days, row)
	}
	return years
}
