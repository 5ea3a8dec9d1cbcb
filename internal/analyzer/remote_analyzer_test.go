package analyzer

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalysisServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/png" {
			http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			return
		}
		img, err := png.Decode(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}
		b := img.Bounds()
		_ = json.NewEncoder(w).Encode(models.AnalysisResult{
			ID:      "remote-1",
			Quality: models.Quality{IsValid: true},
			Metrics: models.ImageMetrics{Width: b.Dx(), Height: b.Dy()},
		})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRemoteAnalyzer_Analyze(t *testing.T) {
	server := newAnalysisServer(t, http.StatusOK)
	ra, err := NewRemoteAnalyzer(server.URL+"/", time.Second, imagecodec.PNG)
	require.NoError(t, err)
	defer ra.Close()

	result, err := ra.Analyze(context.Background(), createCheckerboard(64, 32, 8))

	require.NoError(t, err)
	assert.Equal(t, "remote-1", result.ID)
	assert.Equal(t, RemoteAnalyzerName, result.Analyzer)
	assert.Equal(t, 64, result.Metrics.Width)
	assert.Equal(t, 32, result.Metrics.Height)
	assert.False(t, result.Timestamp.IsZero())
	assert.True(t, result.Quality.IsValid)
}

func TestRemoteAnalyzer_ServiceError(t *testing.T) {
	server := newAnalysisServer(t, http.StatusServiceUnavailable)
	ra, err := NewRemoteAnalyzer(server.URL, time.Second, imagecodec.PNG)
	require.NoError(t, err)

	_, err = ra.Analyze(context.Background(), createCheckerboard(16, 16, 4))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAnalysisFailure))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestRemoteAnalyzer_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()
	ra, err := NewRemoteAnalyzer(server.URL, time.Second, imagecodec.JPEG)
	require.NoError(t, err)

	_, err = ra.Analyze(context.Background(), createCheckerboard(16, 16, 4))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAnalysisFailure))
}

func TestRemoteAnalyzer_Ping(t *testing.T) {
	healthy := newAnalysisServer(t, http.StatusOK)
	ra, err := NewRemoteAnalyzer(healthy.URL, time.Second, imagecodec.PNG)
	require.NoError(t, err)
	assert.NoError(t, ra.Ping(context.Background()))

	unhealthy := newAnalysisServer(t, http.StatusServiceUnavailable)
	ra, err = NewRemoteAnalyzer(unhealthy.URL, time.Second, imagecodec.PNG)
	require.NoError(t, err)
	assert.ErrorContains(t, ra.Ping(context.Background()), "status 503")
}

func TestRemoteAnalyzer_PingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ra, err := NewRemoteAnalyzer(url, 500*time.Millisecond, imagecodec.PNG)
	require.NoError(t, err)

	assert.Error(t, ra.Ping(context.Background()))
}

func TestNewRemoteAnalyzer_InvalidURL(t *testing.T) {
	_, err := NewRemoteAnalyzer("not a url", time.Second, imagecodec.PNG)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
