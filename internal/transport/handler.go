package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-capture-inspector/internal/config"
	"go-capture-inspector/internal/crop"
	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/logger"
	"go-capture-inspector/internal/service"
	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// uploadField is the multipart field carrying an uploaded image
const uploadField = "image"

// StatsProvider reports current counter values for the health endpoint
type StatsProvider interface {
	GetMetrics() map[string]interface{}
}

// NewHandler exposes the capture session over HTTP. metrics and stats may be nil.
func NewHandler(session service.CaptureSession, metrics http.Handler, stats StatsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck(stats))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	cam := r.Group("/camera")
	cam.GET("", cameraStatus(session))
	cam.POST("/start", startCamera(session, cfg))
	cam.POST("/stop", stopCamera(session))
	cam.POST("/retry", retryCamera(session, cfg))

	images := r.Group("/images")
	images.GET("", listImages(session))
	images.POST("", uploadImage(session, cfg))
	images.DELETE("", deleteSelected(session))
	images.POST("/snapshot", snapshot(session, cfg))
	images.POST("/capture", captureOnce(session, cfg))
	images.GET("/last", lastImage(session))
	images.POST("/selection", setSelection(session))
	images.GET("/:id", imageContent(session))
	images.DELETE("/:id", deleteImage(session))
	images.POST("/:id/toggle", toggleSelection(session))
	images.POST("/:id/crop", cropImage(session))

	r.POST("/batches", analyzeSelected(session, cfg))
	r.GET("/history", history(session))

	return r
}

func cameraStatus(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cameraView(s.CameraStatus()))
	}
}

func startCamera(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		if err := s.StartCamera(ctx); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to start camera", err)
			return
		}
		c.JSON(http.StatusOK, cameraView(s.CameraStatus()))
	}
}

func stopCamera(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.StopCamera(); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to stop camera", err)
			return
		}
		c.JSON(http.StatusOK, cameraView(s.CameraStatus()))
	}
}

func retryCamera(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		if err := s.RetryCamera(ctx); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "camera retry failed", err)
			return
		}
		c.JSON(http.StatusOK, cameraView(s.CameraStatus()))
	}
}

func snapshot(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		img, err := s.Snapshot(ctx)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "snapshot failed", err)
			return
		}
		c.JSON(http.StatusCreated, imageView(img))
	}
}

func captureOnce(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		img, err := s.CaptureOnce(ctx)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "capture failed", err)
			return
		}
		c.JSON(http.StatusCreated, imageView(img))
	}
}

func uploadImage(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		header, err := c.FormFile(uploadField)
		if err != nil {
			respondError(c, http.StatusBadRequest, "missing image upload",
				apperrors.NewValidationError(fmt.Sprintf("multipart field %q is required", uploadField), err))
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable image upload", err)
			return
		}
		defer file.Close()

		img, err := s.Upload(ctx, file)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "upload failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"image_id": img.ID,
			"filename": header.Filename,
			"bytes":    header.Size,
		}).Info("Image uploaded")
		c.JSON(http.StatusCreated, imageView(img))
	}
}

func listImages(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, imageListView(s.Images()))
	}
}

func lastImage(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := s.LastImage()
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "image lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, imageView(img))
	}
}

func imageContent(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := s.Image(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "image lookup failed", err)
			return
		}

		format := imagecodec.ParseFormat(c.Query("format"))
		data, err := imagecodec.EncodeBytes(img.Buffer, format)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "image encoding failed", err)
			return
		}
		c.Data(http.StatusOK, format.ContentType(), data)
	}
}

func toggleSelection(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := s.ToggleSelection(c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "toggle failed", err)
			return
		}
		c.JSON(http.StatusOK, imageView(img))
	}
}

func setSelection(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		s.SetSelectionAll(*req.Selected)
		c.JSON(http.StatusOK, imageListView(s.Images()))
	}
}

func deleteImage(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.Delete(c.Param("id"))
		c.Status(http.StatusNoContent)
	}
}

// deleteSelected requires selected=true so a bare DELETE never wipes the store
func deleteSelected(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("selected") != "true" {
			respondError(c, http.StatusBadRequest, "invalid request",
				apperrors.NewValidationError("query parameter selected=true is required", nil))
			return
		}
		c.JSON(http.StatusOK, models.DeleteResponse{Removed: s.DeleteSelected()})
	}
}

func cropImage(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CropRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		img, rect, err := s.Crop(c.Param("id"),
			crop.Request{
				Start: crop.Point{X: req.Start.X, Y: req.Start.Y},
				End:   crop.Point{X: req.End.X, Y: req.End.Y},
			},
			crop.Size{W: req.Display.Width, H: req.Display.Height},
		)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "crop failed", err)
			return
		}

		c.JSON(http.StatusOK, models.CropResponse{
			Image: imageView(img),
			Rect: models.RectResponse{
				X:      rect.Min.X,
				Y:      rect.Min.Y,
				Width:  rect.Dx(),
				Height: rect.Dy(),
			},
		})
	}
}

func analyzeSelected(s service.CaptureSession, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		report, err := s.AnalyzeSelected(ctx)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "batch dispatch failed", err)
			return
		}

		resp := batchView(report)
		logger.WithFields(logrus.Fields{
			"batch_id":           report.BatchID,
			"dispatched":         resp.Dispatched,
			"succeeded":          resp.Succeeded,
			"failed":             resp.Failed,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Batch analysis completed")

		c.JSON(http.StatusOK, resp)
	}
}

func history(s service.CaptureSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := s.History()
		c.JSON(http.StatusOK, models.HistoryResponse{Results: results, Count: len(results)})
	}
}

func healthCheck(stats StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "available",
			"version": "1.0.0",
			"time":    time.Now().UTC().Format(time.RFC3339),
		}
		if stats != nil {
			body["stats"] = stats.GetMetrics()
		}
		c.JSON(http.StatusOK, body)
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		code = http.StatusRequestEntityTooLarge
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
	}
	c.AbortWithStatusJSON(code, resp)
}
