package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/fyerfyer/doc2pdf/api/handler"
	"github.com/fyerfyer/doc2pdf/internal/cache"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/fyerfyer/doc2pdf/internal/database"
	"github.com/fyerfyer/doc2pdf/internal/repository"
	"github.com/fyerfyer/doc2pdf/internal/services"
	"github.com/fyerfyer/doc2pdf/pkg/storage"
	"github.com/fyerfyer/doc2pdf/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQueue 只记录入队的转换ID
type stubQueue struct {
	enqueued []string
}

func (q *stubQueue) EnqueueConversion(_ context.Context, conversionID string) (string, error) {
	q.enqueued = append(q.enqueued, conversionID)
	return "task-" + conversionID, nil
}

func (q *stubQueue) GetTaskInfo(_ context.Context, _ string) (*taskqueue.TaskInfo, error) {
	return nil, taskqueue.ErrTaskNotFound
}

func (q *stubQueue) Close() error { return nil }

type testEnv struct {
	Router  *gin.Engine
	Service *services.ConversionService
}

// 创建测试环境
func setupTestEnv(t *testing.T, opts ...services.ConversionOption) *testEnv {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = filepath.Join(t.TempDir(), "api.db")
	db, err := database.Open(dbCfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	memCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	allOpts := append([]services.ConversionOption{
		services.WithRepository(repository.NewConversionRepositoryWithDB(db)),
		services.WithCache(memCache, 0),
		services.WithLogger(logger),
	}, opts...)

	srv := services.NewConversionService(store, converter.New(converter.WithLogger(logger)), allOpts...)
	require.NoError(t, srv.Init())

	return &testEnv{
		Router:  SetupRouter(handler.NewConversionHandler(srv)),
		Service: srv,
	}
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	w := docx.New().WithDefaultTheme()
	for _, p := range paragraphs {
		w.AddParagraph().AddText(p)
	}
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// uploadRequest 构造multipart上传请求
func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type conversionBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
	Data    struct {
		ID          string `json:"id"`
		FileName    string `json:"filename"`
		Status      string `json:"status"`
		Paragraphs  int    `json:"paragraphs"`
		Pages       int    `json:"pages"`
		DownloadURL string `json:"download_url"`
	} `json:"data"`
}

func serve(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestCreateConversion(t *testing.T) {
	env := setupTestEnv(t)
	content := buildDocx(t, "First", "Second")

	w := serve(env, uploadRequest(t, "report.docx", content))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	var resp conversionBody
	decode(t, w, &resp)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "report.docx", resp.Data.FileName)
	assert.Equal(t, "completed", resp.Data.Status)
	assert.Equal(t, 2, resp.Data.Paragraphs)
	assert.Equal(t, 1, resp.Data.Pages)
	assert.Equal(t, "/api/conversions/"+resp.Data.ID+"/download", resp.Data.DownloadURL)

	t.Run("get", func(t *testing.T) {
		w := serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions/"+resp.Data.ID, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var got conversionBody
		decode(t, w, &got)
		assert.Equal(t, resp.Data.ID, got.Data.ID)
	})

	t.Run("download", func(t *testing.T) {
		w := serve(env, httptest.NewRequest(http.MethodGet, resp.Data.DownloadURL, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "report.pdf")
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("duplicate upload reuses conversion", func(t *testing.T) {
		w := serve(env, uploadRequest(t, "copy.docx", content))
		require.Equal(t, http.StatusOK, w.Code)

		var dup conversionBody
		decode(t, w, &dup)
		assert.Equal(t, resp.Data.ID, dup.Data.ID)
	})
}

func TestCreateConversion_Errors(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("unsupported type", func(t *testing.T) {
		w := serve(env, uploadRequest(t, "legacy.doc", []byte("binary")))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

		var resp conversionBody
		decode(t, w, &resp)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.Code)
		assert.NotEmpty(t, resp.TraceID)
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/conversions", nil)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := serve(env, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed docx", func(t *testing.T) {
		w := serve(env, uploadRequest(t, "broken.docx", []byte("not a zip archive")))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		// 失败的转换仍然保留记录
		convs, total, err := env.Service.List(context.Background(), 0, 10, "failed")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "broken.docx", convs[0].FileName)
	})

	t.Run("text outside the core font", func(t *testing.T) {
		w := serve(env, uploadRequest(t, "greek.docx", buildDocx(t, "Ελληνικά")))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestAsyncConversion(t *testing.T) {
	queue := &stubQueue{}
	env := setupTestEnv(t, services.WithTaskQueue(queue), services.WithAsyncProcessing(true))

	w := serve(env, uploadRequest(t, "queued.docx", buildDocx(t, "Later")))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp conversionBody
	decode(t, w, &resp)
	assert.Equal(t, "pending", resp.Data.Status)
	assert.Empty(t, resp.Data.DownloadURL)
	assert.Equal(t, []string{resp.Data.ID}, queue.enqueued)

	// 转换完成前不能下载
	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions/"+resp.Data.ID+"/download", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	// 模拟worker处理任务
	require.NoError(t, env.Service.Process(context.Background(), resp.Data.ID))

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions/"+resp.Data.ID+"/download", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestRetryConversion(t *testing.T) {
	env := setupTestEnv(t)

	w := serve(env, uploadRequest(t, "broken.docx", []byte("garbage")))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	convs, _, err := env.Service.List(context.Background(), 0, 10, "failed")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	id := convs[0].ID

	// 源文档仍然损坏，重试再次失败
	w = serve(env, httptest.NewRequest(http.MethodPost, "/api/conversions/"+id+"/retry", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 已完成的转换不能重试
	w = serve(env, uploadRequest(t, "ok.docx", buildDocx(t, "fine")))
	require.Equal(t, http.StatusOK, w.Code)
	var ok conversionBody
	decode(t, w, &ok)

	w = serve(env, httptest.NewRequest(http.MethodPost, "/api/conversions/"+ok.Data.ID+"/retry", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListConversions(t *testing.T) {
	env := setupTestEnv(t)

	for _, text := range []string{"one", "two", "three"} {
		w := serve(env, uploadRequest(t, text+".txt", []byte(text)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	var resp struct {
		Data struct {
			Total       int64             `json:"total"`
			Page        int               `json:"page"`
			PageSize    int               `json:"page_size"`
			Conversions []json.RawMessage `json:"conversions"`
		} `json:"data"`
	}

	w := serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions?page=1&page_size=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, int64(3), resp.Data.Total)
	assert.Equal(t, 2, resp.Data.PageSize)
	assert.Len(t, resp.Data.Conversions, 2)

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions?page=2&page_size=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Len(t, resp.Data.Conversions, 1)

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteConversion(t *testing.T) {
	env := setupTestEnv(t)

	w := serve(env, uploadRequest(t, "gone.docx", buildDocx(t, "bye")))
	require.Equal(t, http.StatusOK, w.Code)
	var resp conversionBody
	decode(t, w, &resp)

	w = serve(env, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+resp.Data.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions/"+resp.Data.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(env, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/conversions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	w := serve(env, uploadRequest(t, "a.txt", []byte("a")))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(env, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Status      string           `json:"status"`
			Conversions map[string]int64 `json:"conversions"`
		} `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, int64(1), resp.Data.Conversions["completed"])
}
