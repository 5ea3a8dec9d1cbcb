package transport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-capture-inspector/internal/analyzer"
	"go-capture-inspector/internal/camera"
	"go-capture-inspector/internal/config"
	"go-capture-inspector/internal/crop"
	"go-capture-inspector/internal/dispatch"
	"go-capture-inspector/internal/repository"
	"go-capture-inspector/internal/service"
	"go-capture-inspector/internal/storage"
	"go-capture-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler http.Handler
	device  *camera.StaticDevice
}

func newTestServer(t *testing.T, maxBody int64, metrics http.Handler) *testServer {
	t.Helper()
	return newTestServerWithStats(t, maxBody, metrics, nil)
}

func newTestServerWithStats(t *testing.T, maxBody int64, metrics http.Handler, stats StatsProvider) *testServer {
	t.Helper()
	store := repository.NewImageStore()
	device := camera.NewStaticDevice(400, 300)
	history := storage.NewMemorySink(0)
	session := service.NewCaptureSession(
		store,
		camera.NewController(device, camera.FacingEnvironment, nil),
		crop.NewCropper(store, crop.NewTransform(crop.DefaultMinNativeSize)),
		dispatch.NewDispatcher(),
		analyzer.NewQualityAnalyzer(analyzer.DefaultOptions()),
		history,
		history,
	)
	t.Cleanup(func() { _ = session.Close() })

	cfg := &config.Config{MaxRequestBodySize: maxBody, RequestTimeout: 5 * time.Second}
	return &testServer{handler: NewHandler(session, metrics, stats, cfg), device: device}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)

	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "available")
}

type fixedStats map[string]interface{}

func (s fixedStats) GetMetrics() map[string]interface{} { return s }

func TestHealthCheckStats(t *testing.T) {
	s := newTestServerWithStats(t, 1<<20, nil, fixedStats{"images_added": 3.0})

	w := s.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Status string             `json:"status"`
		Stats  map[string]float64 `json:"stats"`
	}](t, w)
	assert.Equal(t, "available", body.Status)
	assert.Equal(t, 3.0, body.Stats["images_added"])

	w = newTestServer(t, 1<<20, nil).do(t, http.MethodGet, "/health", nil)
	assert.NotContains(t, w.Body.String(), "stats")
}

func TestCaptureOnceAndLastImage(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)

	w := s.do(t, http.MethodGet, "/images/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[models.ErrorResponse](t, w).Type)

	w = s.do(t, http.MethodPost, "/images/capture", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	captured := decode[models.ImageResponse](t, w)
	assert.Equal(t, 400, captured.Width)
	assert.Equal(t, "idle", decode[models.CameraResponse](t, s.do(t, http.MethodGet, "/camera", nil)).State)
	assert.Zero(t, s.device.Held())

	w = s.do(t, http.MethodGet, "/images/last", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, captured.ID, decode[models.ImageResponse](t, w).ID)

	s.device.FailAcquire(camera.ErrPermissionDenied)
	w = s.do(t, http.MethodPost, "/images/capture", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "acquisition_denied", decode[models.ErrorResponse](t, w).Type)
}

func TestCameraLifecycleAndSnapshot(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)

	w := s.do(t, http.MethodGet, "/camera", nil)
	assert.Equal(t, "idle", decode[models.CameraResponse](t, w).State)

	w = s.do(t, http.MethodPost, "/images/snapshot", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_active", decode[models.ErrorResponse](t, w).Type)

	w = s.do(t, http.MethodPost, "/camera/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cam := decode[models.CameraResponse](t, w)
	assert.Equal(t, "active", cam.State)
	assert.Equal(t, "environment", cam.Facing)

	w = s.do(t, http.MethodPost, "/images/snapshot", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	img := decode[models.ImageResponse](t, w)
	assert.True(t, img.Selected)
	assert.Equal(t, 400, img.Width)
	assert.Equal(t, 300, img.Height)

	w = s.do(t, http.MethodGet, "/images/"+img.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	decoded, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 300), decoded.Bounds())

	w = s.do(t, http.MethodGet, "/images/"+img.ID+"?format=jpeg", nil)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodPost, "/camera/stop", nil)
	assert.Equal(t, "idle", decode[models.CameraResponse](t, w).State)
	assert.Equal(t, 0, s.device.Held())
}

func TestCameraDeniedThenRetry(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)
	s.device.FailAcquire(camera.ErrPermissionDenied)

	w := s.do(t, http.MethodPost, "/camera/start", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "acquisition_denied", decode[models.ErrorResponse](t, w).Type)

	w = s.do(t, http.MethodGet, "/camera", nil)
	cam := decode[models.CameraResponse](t, w)
	assert.Equal(t, "error", cam.State)
	assert.NotEmpty(t, cam.Cause)

	s.device.FailAcquire(nil)
	w = s.do(t, http.MethodPost, "/camera/retry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decode[models.CameraResponse](t, w).State)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)

	w := s.upload(t, uploadField, pngOf(t, 120, 80))
	require.Equal(t, http.StatusCreated, w.Code)
	img := decode[models.ImageResponse](t, w)
	assert.Equal(t, 120, img.Width)

	w = s.upload(t, "file", pngOf(t, 10, 10))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, uploadField, []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[models.ErrorResponse](t, w).Type)

	w = s.do(t, http.MethodGet, "/images", nil)
	assert.Equal(t, 1, decode[models.ImageListResponse](t, w).Count)
}

func TestUploadBodyLimit(t *testing.T) {
	s := newTestServer(t, 512, nil)

	noise := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(rand.IntN(256))
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noise))

	w := s.upload(t, uploadField, buf.Bytes())

	assert.GreaterOrEqual(t, w.Code, http.StatusBadRequest)
	w = s.do(t, http.MethodGet, "/images", nil)
	assert.Zero(t, decode[models.ImageListResponse](t, w).Count)
}

func TestSelectionAndDeletion(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)
	a := decode[models.ImageResponse](t, s.upload(t, uploadField, pngOf(t, 60, 60)))
	b := decode[models.ImageResponse](t, s.upload(t, uploadField, pngOf(t, 70, 60)))

	w := s.do(t, http.MethodPost, "/images/"+a.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.ImageResponse](t, w).Selected)

	w = s.do(t, http.MethodPost, "/images/missing/toggle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/images", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/images?selected=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[models.DeleteResponse](t, w).Removed)

	list := decode[models.ImageListResponse](t, s.do(t, http.MethodGet, "/images", nil))
	require.Len(t, list.Images, 1)
	assert.Equal(t, a.ID, list.Images[0].ID)
	assert.NotEqual(t, b.ID, list.Images[0].ID)

	w = s.do(t, http.MethodPost, "/images/selection", map[string]bool{"selected": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[models.ImageListResponse](t, w).SelectedCount)

	w = s.do(t, http.MethodPost, "/images/selection", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/images/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/images/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCrop(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)
	img := decode[models.ImageResponse](t, s.upload(t, uploadField, pngOf(t, 400, 300)))

	// rendered at half size
	w := s.do(t, http.MethodPost, "/images/"+img.ID+"/crop", models.CropRequest{
		Start:   models.Point{X: 110, Y: 90},
		End:     models.Point{X: 10, Y: 20},
		Display: models.Size{Width: 200, Height: 150},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.CropResponse](t, w)
	assert.Equal(t, models.RectResponse{X: 20, Y: 40, Width: 200, Height: 140}, resp.Rect)
	assert.Equal(t, 200, resp.Image.Width)

	w = s.do(t, http.MethodPost, "/images/"+img.ID+"/crop", models.CropRequest{
		Start:   models.Point{X: 0, Y: 0},
		End:     models.Point{X: 5, Y: 5},
		Display: models.Size{Width: 200, Height: 140},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "selection_too_small", decode[models.ErrorResponse](t, w).Type)

	w = s.do(t, http.MethodPost, "/images/"+img.ID+"/crop", map[string]any{"start": map[string]int{"x": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/images/missing/crop", models.CropRequest{
		End:     models.Point{X: 100, Y: 100},
		Display: models.Size{Width: 100, Height: 100},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchesAndHistory(t *testing.T) {
	s := newTestServer(t, 1<<20, nil)

	w := s.do(t, http.MethodPost, "/batches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[models.BatchResponse](t, w).Dispatched)

	first := decode[models.ImageResponse](t, s.upload(t, uploadField, pngOf(t, 120, 90)))
	second := decode[models.ImageResponse](t, s.upload(t, uploadField, pngOf(t, 130, 90)))

	w = s.do(t, http.MethodPost, "/batches", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode[models.BatchResponse](t, w)
	assert.Equal(t, 2, batch.Dispatched)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Zero(t, batch.Failed)
	assert.NotEmpty(t, batch.BatchID)
	require.Len(t, batch.Outcomes, 2)
	assert.Equal(t, first.ID, batch.Outcomes[0].SourceImageID)
	assert.Equal(t, second.ID, batch.Outcomes[1].SourceImageID)

	hist := decode[models.HistoryResponse](t, s.do(t, http.MethodGet, "/history", nil))
	require.Equal(t, 2, hist.Count)
	assert.Equal(t, first.ID, hist.Results[0].ImageID)
	assert.Equal(t, batch.BatchID, hist.Results[0].BatchID)
	assert.Equal(t, analyzer.LocalAnalyzerName, hist.Results[0].Analyzer)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("capture_images_stored 0\n"))
	})

	s := newTestServer(t, 1<<20, metrics)
	w := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "capture_images_stored"))

	s = newTestServer(t, 1<<20, nil)
	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
