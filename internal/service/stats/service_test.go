package stats

import (
	"context"
	"testing"
	"time"

	"just_sending_server/internal/dao/mysql/repository"
	"just_sending_server/internal/model"
	"just_sending_server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *repository.Repositories) {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewStatsService(repos.Stats, repository.NewKvRepository(db), time.Hour)
	svc.now = func() time.Time { return fixedNow }
	return svc, repos
}

func TestBucketIds(t *testing.T) {
	assert.Equal(t, [4]int64{-1, 250000, 250300, 250307}, BucketIds(fixedNow))
	assert.Equal(t, [4]int64{-1, 90000, 91200, 91231}, BucketIds(time.Date(2009, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestRecordMessageWithFile(t *testing.T) {
	ctx := context.Background()
	svc, repos := setup(t)

	size := int64(500)
	svc.RecordMessage(ctx, 10, &size)

	for _, id := range BucketIds(fixedNow) {
		st, err := repos.Stats.FindById(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.Messages, "bucket %d", id)
		assert.Equal(t, int64(10), st.MessagesSizeBytes, "bucket %d", id)
		assert.Equal(t, int64(1), st.Files, "bucket %d", id)
		assert.Equal(t, int64(500), st.FilesSizeBytes, "bucket %d", id)
		assert.Equal(t, int64(1), st.Version, "bucket %d", id)
	}
}

func TestRecordEventAccumulates(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	svc.RecordEvent(ctx, KindSessions, 1)
	svc.RecordEvent(ctx, KindDevices, 2)
	svc.RecordEvent(ctx, KindDevices, 1)
	svc.RecordMessage(ctx, 5, nil)

	all, err := svc.AllTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Sessions)
	assert.Equal(t, int64(3), all.Devices)
	assert.Equal(t, int64(1), all.Messages)
	assert.Equal(t, int64(0), all.Files)
	assert.Equal(t, int64(4), all.Version)
}

// conflictRepo 每次写入前让库里的版本先前进一步
type conflictRepo struct {
	repository.StatsRepository
}

func (r conflictRepo) SaveWithVersion(ctx context.Context, st *model.Stats) (bool, error) {
	bumped := *st
	if _, err := r.StatsRepository.SaveWithVersion(ctx, &bumped); err != nil {
		return false, err
	}
	return r.StatsRepository.SaveWithVersion(ctx, st)
}

func TestConflictDropsIncrement(t *testing.T) {
	ctx := context.Background()
	svc, repos := setup(t)
	svc.RecordEvent(ctx, KindMessages, 1)

	svc.repo = conflictRepo{StatsRepository: repos.Stats}
	svc.RecordEvent(ctx, KindMessages, 1)

	// 冲突的那次写入被丢弃，只有抢先的写入生效
	st, err := repos.Stats.FindById(ctx, model.StatsAllTimeId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Messages)
	assert.Equal(t, int64(2), st.Version)
}

func TestReadAllGroupsAndCaches(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	svc.RecordEvent(ctx, KindSessions, 1)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }
	svc.RecordEvent(ctx, KindSessions, 1)

	tree, err := svc.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "25", tree[0].Year)

	months := tree[0].Months
	require.Len(t, months, 3)
	assert.Equal(t, "00", months[0].Month)
	assert.Equal(t, "03", months[1].Month)
	assert.Equal(t, "04", months[2].Month)
	require.Len(t, months[1].Days, 2)
	assert.Equal(t, int64(250300), months[1].Days[0].Id)
	assert.Equal(t, int64(250307), months[1].Days[1].Id)

	// 缓存期内新增数据不可见
	svc.RecordEvent(ctx, KindSessions, 1)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	svc.RecordEvent(ctx, KindSessions, 1)
	again, err := svc.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestGroupSkipsAllTime(t *testing.T) {
	tree := Group([]model.Stats{{Id: model.StatsAllTimeId}, {Id: 90101}, {Id: 90000}})
	require.Len(t, tree, 1)
	assert.Equal(t, "09", tree[0].Year)
	require.Len(t, tree[0].Months, 2)
}
