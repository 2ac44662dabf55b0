package https_server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"just_sending_server/internal/config"
	"just_sending_server/internal/dao/mysql/repository"
	"just_sending_server/internal/dto/respond"
	"just_sending_server/internal/handler"
	"just_sending_server/internal/https_server"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/model"
	"just_sending_server/internal/service"
	"just_sending_server/internal/testutil"
	"just_sending_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = strings.Repeat("a", 32)
	idB = strings.Repeat("b", 32)
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := handler.InitTrans("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type envelope struct {
	Code int             `json:"code"`
	Msg  any             `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newEngine(t *testing.T, tweak func(*config.Config)) *gin.Engine {
	t.Helper()
	conf := config.Default()
	conf.MainConfig.Mode = "test"
	if tweak != nil {
		tweak(conf)
	}

	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	kv := repository.NewKvRepository(db)
	uploads := storage.NewUploadStore(afero.NewMemMapFs(), "/upload")
	svc := service.NewServices(repos, kv, uploads, &conf.AppConfig)
	t.Cleanup(svc.Close)

	return https_server.Init(conf, handler.NewHandlers(svc, conf.AppConfig.MaxUploadSizeBytes))
}

func do(t *testing.T, engine *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return do(t, engine, req)
}

func get(t *testing.T, engine *gin.Engine, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, engine, httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func newSession(t *testing.T, engine *gin.Engine) {
	t.Helper()
	w, _ := postJSON(t, engine, "/api/app/new", gin.H{"id": idA, "id2": idB})
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	engine := newEngine(t, nil)
	w, env := get(t, engine, "/api/test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errorx.CodeSuccess, env.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCreateSession(t *testing.T) {
	engine := newEngine(t, nil)

	newSession(t, engine)
	w, _ := postJSON(t, engine, "/api/app/new", gin.H{"id": idA, "id2": idB})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := postJSON(t, engine, "/api/app/new", gin.H{"id": "short", "id2": idB})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errorx.CodeInvalidParam, env.Code)
	assert.Equal(t, map[string]any{"id": "id must be a 32-character session id"}, env.Msg)
}

func TestPostAndListMessages(t *testing.T) {
	engine := newEngine(t, nil)
	newSession(t, engine)

	w, env := postJSON(t, engine, "/api/app/post", gin.H{"SessionId": idA, "ComposerText": "hello"})
	require.Equal(t, http.StatusAccepted, w.Code)
	posted := decode[respond.IdRespond](t, env)

	_, env = postJSON(t, engine, "/api/app/messages", gin.H{"id": idA, "id2": idB})
	msgs := decode[[]model.Message](t, env)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)

	// 校验失败返回空列表而不是错误
	w, env = postJSON(t, engine, "/api/app/messages", gin.H{"id": idA, "id2": "wrong"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Message](t, env))

	_, env = postJSON(t, engine, "/api/app/message-raw", gin.H{"messageId": posted.Id, "sessionId": idA})
	assert.Equal(t, "hello", decode[respond.MessageRawRespond](t, env).Content)

	w, _ = postJSON(t, engine, "/api/app/message-raw", gin.H{"messageId": posted.Id, "sessionId": idB})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = postJSON(t, engine, "/api/app/post", gin.H{"SessionId": idB, "ComposerText": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errorx.CodeSessionNotExist, env.Code)
}

func TestConnectWithPin(t *testing.T) {
	engine := newEngine(t, nil)
	newSession(t, engine)

	_, env := postJSON(t, engine, "/api/app/lite/share-token/new", gin.H{"SessionId": idA, "SessionVerification": idB})
	formatted := decode[respond.ShareTokenRespond](t, env).Token
	require.Len(t, formatted, 6)
	token, err := strconv.ParseInt(formatted, 10, 64)
	require.NoError(t, err)

	w, env := postJSON(t, engine, "/api/app/connect", gin.H{"token": token})
	require.Equal(t, http.StatusOK, w.Code)
	joined := decode[respond.ConnectRespond](t, env)
	assert.Equal(t, idA, joined.SessionId)
	assert.Equal(t, idB, joined.SessionVerification)
	assert.False(t, joined.IsLiteSession)

	// 配对码只能兑换一次
	w, env = postJSON(t, engine, "/api/app/connect", gin.H{"Token": token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errorx.CodeTokenInvalid, env.Code)
}

func TestConnectRateLimited(t *testing.T) {
	engine := newEngine(t, func(c *config.Config) {
		c.SecurityConfig.PinRateLimitRps = 0.001
		c.SecurityConfig.PinRateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		w, _ := postJSON(t, engine, "/api/app/connect", gin.H{"token": 123456})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w, env := postJSON(t, engine, "/api/app/connect", gin.H{"token": 123456})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errorx.CodeTooManyRequests, env.Code)
}

func TestPublicKeys(t *testing.T) {
	engine := newEngine(t, nil)
	newSession(t, engine)
	jwk := `{"kty":"RSA","n":"abc","e":"AQAB"}`

	w, env := postJSON(t, engine, "/api/app/key", gin.H{"sessionId": idA, "sessionVerification": idB, "alias": "k", "publicKey": jwk})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[respond.IdRespond](t, env).Id

	_, env = get(t, engine, "/api/k/"+id)
	key := decode[model.PublicKey](t, env)
	assert.Equal(t, jwk, key.PublicKeyJson)

	w, _ = get(t, engine, "/api/k/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = postJSON(t, engine, "/api/app/key", gin.H{"sessionId": idA, "sessionVerification": idB, "alias": "k", "publicKey": `{"kty":"EC"}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAndDownload(t *testing.T) {
	engine := newEngine(t, func(c *config.Config) {
		c.AppConfig.MaxUploadSizeBytes = 16
	})
	newSession(t, engine)

	w, env := do(t, engine, multipartRequest(t, "/api/app/post/files-stream", map[string]string{"SessionId": idA}, "note.txt", "file body"))
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode[respond.IdRespond](t, env).Id

	w, _ = get(t, engine, "/api/app/file/"+id+"/"+idA)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "file body", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "note.txt")

	w, _ = get(t, engine, "/api/app/file/"+id+"/"+idB)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, engine, multipartRequest(t, "/api/app/post/files-stream", map[string]string{"SessionId": idA}, "big.bin", strings.Repeat("x", 64)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, errorx.CodePayloadTooLarge, env.Code)
}

func TestCliUploadNeedsConnectedDevice(t *testing.T) {
	engine := newEngine(t, nil)
	newSession(t, engine)

	w, _ := do(t, engine, multipartRequest(t, "/api/f/"+idA, nil, "a.txt", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, engine, multipartRequest(t, "/api/f/"+idB, nil, "a.txt", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecureLineHandoff(t *testing.T) {
	engine := newEngine(t, nil)

	w, env := postJSON(t, engine, "/api/secure-line/message", gin.H{"Id": "h1", "Data": "payload"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "h1", decode[respond.IdRespond](t, env).Id)

	w, env = get(t, engine, "/api/secure-line/message?id=h1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payload", decode[string](t, env))

	w, _ = get(t, engine, "/api/secure-line/message?id=h1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLitePoll(t *testing.T) {
	engine := newEngine(t, nil)

	w, env := postJSON(t, engine, "/api/app/lite/poll", gin.H{"id": idA, "id2": idB})
	require.Equal(t, http.StatusOK, w.Code)
	poll := decode[respond.LitePollRespond](t, env)
	assert.True(t, poll.HasSession)
	assert.True(t, poll.HasToken)
	require.NotNil(t, poll.Token)
	assert.Len(t, *poll.Token, 6)
	require.Len(t, poll.Messages, 1)
	assert.True(t, poll.Messages[0].IsNotification)

	// 再次轮询拿到同一个配对码
	_, env = postJSON(t, engine, "/api/app/lite/poll", gin.H{"id": idA, "id2": idB})
	again := decode[respond.LitePollRespond](t, env)
	assert.Equal(t, *poll.Token, *again.Token)

	w, _ = postJSON(t, engine, "/api/app/lite/poll", gin.H{"id": idA, "id2": strings.Repeat("c", 32)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = postJSON(t, engine, "/api/app/lite/share-token/cancel", gin.H{"SessionId": idA, "SessionVerification": idB})
	assert.Equal(t, http.StatusOK, w.Code)
	_, env = postJSON(t, engine, "/api/app/lite/poll", gin.H{"id": idA, "id2": idB})
	assert.False(t, decode[respond.LitePollRespond](t, env).HasToken)

	w, _ = postJSON(t, engine, "/api/app/lite/erase-session", gin.H{"SessionId": idA, "SessionVerification": idB})
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = postJSON(t, engine, "/api/app/lite/erase-session", gin.H{"SessionId": idA, "SessionVerification": idB})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errorx.CodeSessionNotExist, env.Code)
}

func TestStatsRaw(t *testing.T) {
	engine := newEngine(t, nil)
	newSession(t, engine)

	w, env := get(t, engine, "/api/stats/raw")
	require.Equal(t, http.StatusOK, w.Code)
	years := decode[[]model.StatYear](t, env)
	require.Len(t, years, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newEngine(t, nil)
	get(t, engine, "/api/test")

	w, _ := get(t, engine, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
