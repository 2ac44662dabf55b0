package repository

import (
	"context"
	"testing"
	"time"

	"just_sending_server/internal/model"
	"just_sending_server/internal/testutil"
	"just_sending_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string) *model.Session {
	return &model.Session{Id: id, IdVerification: id + "-v", DateCreated: time.Now().UTC()}
}

func TestSessionRepository_CreateIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))

	created, err := repos.Session.Create(ctx, newSession("s1"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Session.Create(ctx, newSession("s1"))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repos.Session.FindById(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1-v", got.IdVerification)
	assert.Empty(t, got.ConnectionIds())
}

func TestSessionRepository_FindMissing(t *testing.T) {
	repos := NewRepositories(testutil.NewTestDB(t))
	_, err := repos.Session.FindById(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errorx.IsNotFound(err))
}

func TestSessionRepository_UpdateConnectionIds(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))
	_, err := repos.Session.Create(ctx, newSession("s1"))
	require.NoError(t, err)

	require.NoError(t, repos.Session.UpdateConnectionIds(ctx, "s1", []string{"a", "b"}))
	got, err := repos.Session.FindById(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.ConnectionIds())

	// 已删除的会话不会被更新重新创建
	require.NoError(t, repos.Session.Delete(ctx, "s1"))
	require.NoError(t, repos.Session.UpdateConnectionIds(ctx, "s1", []string{"c"}))
	_, err = repos.Session.FindById(ctx, "s1")
	assert.True(t, errorx.IsNotFound(err))
}

func TestMessageRepository_FindBySessionSince(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))

	for i, epoch := range []int64{100, 200, 300} {
		require.NoError(t, repos.Message.Create(ctx, &model.Message{
			Id:            string(rune('a' + i)),
			SessionId:     "s1",
			Text:          "m",
			DateSent:      time.Unix(epoch, 0).UTC().Format(model.TimeLayout),
			DateSentEpoch: epoch,
		}))
	}
	require.NoError(t, repos.Message.Create(ctx, &model.Message{Id: "x", SessionId: "s2", DateSentEpoch: 500}))

	msgs, err := repos.Message.FindBySessionSince(ctx, "s1", 100)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(300), msgs[0].DateSentEpoch)
	assert.Equal(t, int64(200), msgs[1].DateSentEpoch)

	require.NoError(t, repos.Message.DeleteBySessionId(ctx, "s1"))
	msgs, err = repos.Message.FindBySessionSince(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = repos.Message.FindById(ctx, "x")
	assert.NoError(t, err)
}

func TestPublicKeyRepository(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))

	require.NoError(t, repos.PublicKey.Create(ctx, &model.PublicKey{
		Id: "k1", SessionId: "s1", Alias: "alias", PublicKeyJson: "{}", DateCreated: time.Now().UTC(),
	}))
	got, err := repos.PublicKey.FindById(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "alias", got.Alias)

	require.NoError(t, repos.PublicKey.DeleteBySessionId(ctx, "s1"))
	_, err = repos.PublicKey.FindById(ctx, "k1")
	assert.True(t, errorx.IsNotFound(err))
}

func TestStatsRepository_SaveWithVersion(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))

	first := &model.Stats{Id: 250101, Messages: 1, Version: 1, DateCreatedUtc: time.Now().UTC()}
	ok, err := repos.Stats.SaveWithVersion(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一个新桶被并发插入，后到者失败
	dup := &model.Stats{Id: 250101, Messages: 1, Version: 1, DateCreatedUtc: time.Now().UTC()}
	ok, err = repos.Stats.SaveWithVersion(ctx, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	next := &model.Stats{Id: 250101, Messages: 2, Version: 2}
	ok, err = repos.Stats.SaveWithVersion(ctx, next)
	require.NoError(t, err)
	assert.True(t, ok)

	// 过期版本
	stale := &model.Stats{Id: 250101, Messages: 5, Version: 2}
	ok, err = repos.Stats.SaveWithVersion(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repos.Stats.FindById(ctx, 250101)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Messages)
	assert.Equal(t, int64(2), got.Version)
}

func TestStatsRepository_FindAllExceptAllTime(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))
	for _, id := range []int64{250200, model.StatsAllTimeId, 250000, 250101} {
		ok, err := repos.Stats.SaveWithVersion(ctx, &model.Stats{Id: id, Version: 1, DateCreatedUtc: time.Now().UTC()})
		require.NoError(t, err)
		require.True(t, ok)
	}

	all, err := repos.Stats.FindAllExceptAllTime(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(250000), all[0].Id)
	assert.Equal(t, int64(250101), all[1].Id)
	assert.Equal(t, int64(250200), all[2].Id)
}

func TestRepositories_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(testutil.NewTestDB(t))

	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if _, err := tx.Session.Create(ctx, newSession("s1")); err != nil {
			return err
		}
		return errorx.ErrServerBusy
	})
	require.ErrorIs(t, err, errorx.ErrServerBusy)

	_, err = repos.Session.FindById(ctx, "s1")
	assert.True(t, errorx.IsNotFound(err))
}

func TestKvRepository(t *testing.T) {
	ctx := context.Background()
	kv := NewKvRepository(testutil.NewTestDB(t))

	v, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Set(ctx, "a", "2", 0))
	v, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	ok, err := kv.SetNX(ctx, "a", "3", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = kv.SetNX(ctx, "b", "3", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = kv.Take(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	v, err = kv.Take(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	exists, err := kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, kv.Delete(ctx, "a"))
	exists, err = kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestKvRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	kv := NewKvRepository(testutil.NewTestDB(t))

	require.NoError(t, kv.Set(ctx, "t", "v", time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	v, err := kv.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	// 过期键可以被重新占用
	ok, err := kv.SetNX(ctx, "t", "w", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Set(ctx, "u", "v", time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	n, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
