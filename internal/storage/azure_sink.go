package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go-capture-inspector/internal/logger"
	"go-capture-inspector/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

// blobUploader is the part of *azblob.Client the sink needs
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureResultSink archives results and batch records as JSON blobs:
//
//	results/<batch id>/<image id>.json
//	batches/<batch id>.json
type AzureResultSink struct {
	client    blobUploader
	container string
}

// NewAzureResultSink connects to the storage account and makes sure the
// container exists
func NewAzureResultSink(ctx context.Context, accountName, accountKey, container string) (*AzureResultSink, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to create container %s: %w", container, err)
	}

	return newAzureResultSink(client, container), nil
}

func newAzureResultSink(client blobUploader, container string) *AzureResultSink {
	return &AzureResultSink{client: client, container: container}
}

// StoreResults uploads one blob per result
func (s *AzureResultSink) StoreResults(ctx context.Context, results []models.AnalysisResult) error {
	for _, r := range results {
		batch := r.BatchID
		if batch == "" {
			batch = "unbatched"
		}
		name := path.Join("results", batch, r.ImageID+".json")
		if err := s.upload(ctx, name, r, map[string]*string{
			"image_id": to(r.ImageID),
			"analyzer": to(r.Analyzer),
		}); err != nil {
			return err
		}
	}
	return nil
}

// StoreBatch uploads the batch record
func (s *AzureResultSink) StoreBatch(ctx context.Context, record models.BatchRecord) error {
	name := path.Join("batches", record.BatchID+".json")
	return s.upload(ctx, name, record, map[string]*string{
		"batch_failed": to(fmt.Sprintf("%t", record.BatchFailed)),
		"started_at":   to(record.StartedAt.UTC().Format(time.RFC3339)),
	})
}

func (s *AzureResultSink) upload(ctx context.Context, name string, v any, metadata map[string]*string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	contentType := "application/json"
	_, err = s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		Metadata:    metadata,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload %s failed: %w", name, err)
	}

	logger.WithFields(logrus.Fields{
		"container": s.container,
		"blob":      name,
		"bytes":     len(data),
	}).Debug("Archived blob")
	return nil
}

func to[T any](v T) *T {
	return &v
}

var _ ResultSink = (*AzureResultSink)(nil)
