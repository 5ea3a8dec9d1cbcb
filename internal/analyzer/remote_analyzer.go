package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/models"
	"go-capture-inspector/pkg/validation"
)

// RemoteAnalyzerName identifies results produced by the HTTP analyzer
const RemoteAnalyzerName = "remote"

const maxResponseBytes = 1 << 20

// RemoteAnalyzer posts encoded images to an analysis service.
//
// The service accepts POST {base}/analyze with the image as the body and
// answers with a JSON AnalysisResult; GET {base}/health answers 2xx when
// it is ready to take requests.
type RemoteAnalyzer struct {
	baseURL string
	format  imagecodec.Format
	client  *http.Client
}

// NewRemoteAnalyzer creates a client for the analysis service at baseURL
func NewRemoteAnalyzer(baseURL string, timeout time.Duration, format imagecodec.Format) (*RemoteAnalyzer, error) {
	if err := validation.NewURLValidator().ValidateEndpointURL(baseURL); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAnalyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		format:  format,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Analyze uploads img and decodes the service's verdict
func (ra *RemoteAnalyzer) Analyze(ctx context.Context, img image.Image) (models.AnalysisResult, error) {
	start := time.Now()
	body, err := imagecodec.EncodeBytes(img, ra.format)
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("failed to encode image", err)
	}

	url := ra.baseURL + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("failed to build analysis request", err)
	}
	req.Header.Set("Content-Type", ra.format.ContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := ra.client.Do(req)
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("analysis request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("failed to read analysis response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError(
			fmt.Sprintf("analysis request to %s failed with status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("failed to unmarshal analysis response", err)
	}
	if result.Analyzer == "" {
		result.Analyzer = RemoteAnalyzerName
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	if result.ProcessingTimeSec == 0 {
		result.ProcessingTimeSec = time.Since(start).Seconds()
	}
	return result, nil
}

// Ping checks the service's health endpoint
func (ra *RemoteAnalyzer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ra.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := ra.client.Do(req)
	if err != nil {
		return fmt.Errorf("analysis service unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analysis service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (ra *RemoteAnalyzer) Close() error {
	ra.client.CloseIdleConnections()
	return nil
}

var (
	_ Analyzer = (*RemoteAnalyzer)(nil)
	_ Pinger   = (*RemoteAnalyzer)(nil)
)
