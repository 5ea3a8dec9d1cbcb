package transport

import (
	"go-capture-inspector/internal/dispatch"
	"go-capture-inspector/internal/repository"
	"go-capture-inspector/internal/service"
	"go-capture-inspector/pkg/models"
)

func cameraView(status service.CameraStatus) models.CameraResponse {
	return models.CameraResponse{
		State:  string(status.State),
		Cause:  status.Cause,
		Facing: string(status.Facing),
	}
}

func imageView(img repository.CapturedImage) models.ImageResponse {
	resp := models.ImageResponse{
		ID:         img.ID,
		Selected:   img.Selected,
		CapturedAt: img.CapturedAt,
	}
	if img.Buffer != nil {
		b := img.Buffer.Bounds()
		resp.Width, resp.Height = b.Dx(), b.Dy()
	}
	return resp
}

func imageListView(images []repository.CapturedImage) models.ImageListResponse {
	resp := models.ImageListResponse{
		Images: make([]models.ImageResponse, 0, len(images)),
		Count:  len(images),
	}
	for _, img := range images {
		resp.Images = append(resp.Images, imageView(img))
		if img.Selected {
			resp.SelectedCount++
		}
	}
	return resp
}

func batchView(report dispatch.BatchReport) models.BatchResponse {
	return models.BatchResponse{
		BatchRecord: report.Record(),
		Dispatched:  len(report.Outcomes),
		Succeeded:   len(report.Successes()),
		Failed:      len(report.Failures()),
	}
}
