package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"just_sending_server/internal/dao/mysql/repository"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/model"
	"just_sending_server/internal/service/sharetoken"
	"just_sending_server/internal/service/stats"
	"just_sending_server/internal/testutil"
	"just_sending_server/pkg/constants"
	"just_sending_server/pkg/errorx"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *Service
	repos   *repository.Repositories
	kv      *repository.KvRepository
	tokens  *sharetoken.Service
	stats   *stats.Service
	uploads *storage.UploadStore
}

func setup(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	kv := repository.NewKvRepository(db)
	tokens := sharetoken.NewShareTokenService(kv, repos.Session, 0)
	statsSvc := stats.NewStatsService(repos.Stats, kv, time.Hour)
	uploads := storage.NewUploadStore(afero.NewMemMapFs(), "/upload")
	svc := NewSessionService(repos, kv, tokens, statsSvc, uploads, ttl)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, repos: repos, kv: kv, tokens: tokens, stats: statsSvc, uploads: uploads}
}

var (
	idA = strings.Repeat("a", 32)
	idB = strings.Repeat("b", 32)
)

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)

	created, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)
	assert.False(t, created)

	all, err := f.stats.AllTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Sessions)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	_, err := f.svc.Create(ctx, idA, idB, true)
	require.NoError(t, err)

	s, err := f.svc.Verify(ctx, idA, idB)
	require.NoError(t, err)
	assert.True(t, s.IsLiteSession)

	_, err = f.svc.Verify(ctx, idA, "wrong")
	assert.True(t, errorx.IsNotFound(err))

	_, err = f.svc.Verify(ctx, "missing", idB)
	assert.True(t, errorx.IsNotFound(err))
}

func TestTrackAndUntrack(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	_, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)

	s, err := f.svc.TrackConnection(ctx, idA, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, s.ConnectionIds())

	s, err = f.svc.TrackConnection(ctx, idA, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, s.ConnectionIds())

	// 重复挂载不产生重复项
	s, err = f.svc.TrackConnection(ctx, idA, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, s.ConnectionIds())

	s, err = f.svc.UntrackConnection(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"c2"}, s.ConnectionIds())

	s, err = f.svc.UntrackConnection(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = f.svc.TrackConnection(ctx, "missing", "c3")
	assert.True(t, errorx.IsNotFound(err))
}

func TestSerializedConnectsCountAll(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	_, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := f.svc.TrackConnection(ctx, idA, fmt.Sprintf("c%d", i))
		require.NoError(t, err)
	}
	s, err := f.svc.Get(ctx, idA)
	require.NoError(t, err)
	assert.Len(t, s.ConnectionIds(), n)
}

func TestConcurrentConnectsNeverOvercount(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	_, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.TrackConnection(ctx, idA, fmt.Sprintf("c%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := f.svc.Get(ctx, idA)
	require.NoError(t, err)
	count := len(s.ConnectionIds())
	assert.GreaterOrEqual(t, count, 1)
	assert.LessOrEqual(t, count, n)
}

func seedSession(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)
	_, err = f.svc.TrackConnection(ctx, idA, "c1")
	require.NoError(t, err)
	_, err = f.svc.TrackConnection(ctx, idA, "c2")
	require.NoError(t, err)
	require.NoError(t, f.repos.Message.Create(ctx, &model.Message{Id: "m1", SessionId: idA, Text: "x"}))
	require.NoError(t, f.repos.PublicKey.Create(ctx, &model.PublicKey{Id: "k1", SessionId: idA, Alias: "a", DateCreated: time.Now()}))
	_, err = f.tokens.Allocate(ctx, idA)
	require.NoError(t, err)
	_, err = f.uploads.Save(idA, "f.bin", strings.NewReader("data"), 0)
	require.NoError(t, err)
}

func assertTornDown(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	_, err := f.repos.Session.FindById(ctx, idA)
	assert.True(t, errorx.IsNotFound(err))
	msgs, err := f.repos.Message.FindBySessionSince(ctx, idA, -1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = f.repos.PublicKey.FindById(ctx, "k1")
	assert.True(t, errorx.IsNotFound(err))
	_, ok, err := f.tokens.Current(ctx, idA)
	require.NoError(t, err)
	assert.False(t, ok)
	exists, err := f.kv.Exists(ctx, constants.KEY_CONNECTION+"c1")
	require.NoError(t, err)
	assert.False(t, exists)
	dirExists, _ := afero.DirExists(f.uploads.Fs(), f.uploads.Dir(idA))
	assert.False(t, dirExists)
}

func TestTeardownCascades(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	seedSession(t, f)

	ids, err := f.svc.Teardown(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
	assertTornDown(t, f)

	// 再次销毁是空操作
	ids, err = f.svc.Teardown(ctx, idA)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestTeardownConcurrent(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)
	seedSession(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Teardown(ctx, idA)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assertTornDown(t, f)
}

func TestExpiryTearsDownAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 50*time.Millisecond)

	got := make(chan []string, 1)
	f.svc.SetExpiredHandler(func(sessionId string, connectionIds []string) {
		assert.Equal(t, idA, sessionId)
		got <- connectionIds
	})

	_, err := f.svc.Create(ctx, idA, idB, false)
	require.NoError(t, err)
	_, err = f.svc.TrackConnection(ctx, idA, "c1")
	require.NoError(t, err)

	select {
	case ids := <-got:
		assert.Equal(t, []string{"c1"}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not expire")
	}
	_, err = f.svc.Get(ctx, idA)
	assert.True(t, errorx.IsNotFound(err))
}

func TestRestoreExpirationsTearsDownExpired(t *testing.T) {
	ctx := context.Background()
	f := setup(t, time.Hour)

	old := &model.Session{Id: idA, IdVerification: idB, DateCreated: time.Now().UTC().Add(-2 * time.Hour)}
	_, err := f.repos.Session.Create(ctx, old)
	require.NoError(t, err)

	require.NoError(t, f.svc.RestoreExpirations(ctx))
	assert.Eventually(t, func() bool {
		_, err := f.repos.Session.FindById(ctx, idA)
		return errorx.IsNotFound(err)
	}, 5*time.Second, 20*time.Millisecond)
}
