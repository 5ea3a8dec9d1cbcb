package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MetricsObserver exports event counters as Prometheus metrics
type MetricsObserver struct {
	imagesAdded      prometheus.Counter
	imagesRemoved    prometheus.Counter
	imagesStored     prometheus.Gauge
	cropsApplied     prometheus.Counter
	cameraState      *prometheus.CounterVec
	batches          *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// NewMetricsObserver creates a metrics observer and registers its collectors
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		imagesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_images_added_total",
			Help: "Images added to the store by snapshot or upload",
		}),
		imagesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_images_removed_total",
			Help: "Images removed from the store",
		}),
		imagesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capture_images_stored",
			Help: "Images currently held in the store",
		}),
		cropsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_crops_applied_total",
			Help: "Crops applied to stored images",
		}),
		cameraState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_camera_transitions_total",
			Help: "Camera controller transitions by target state",
		}, []string{"state"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_batches_total",
			Help: "Batch dispatches by final status",
		}, []string{"status"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_analyses_total",
			Help: "Per-image analyses by outcome",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_analysis_duration_seconds",
			Help:    "Duration of per-image analyses",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		o.imagesAdded, o.imagesRemoved, o.imagesStored, o.cropsApplied,
		o.cameraState, o.batches, o.analyses, o.analysisDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent handles events by updating collectors
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	switch event.EventType {
	case ImageAdded:
		o.imagesAdded.Inc()
		o.imagesStored.Inc()
	case ImageRemoved:
		o.imagesRemoved.Inc()
		o.imagesStored.Dec()
	case BufferReplaced:
		o.cropsApplied.Inc()
	case CameraStateChanged:
		o.cameraState.WithLabelValues(event.State).Inc()
	case BatchCompleted:
		o.batches.WithLabelValues("completed").Inc()
	case BatchFailed:
		o.batches.WithLabelValues("failed").Inc()
	case AnalysisCompleted:
		o.analyses.WithLabelValues("success").Inc()
		o.analysisDuration.Observe(event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.analyses.WithLabelValues("failure").Inc()
		o.analysisDuration.Observe(event.ProcessingTime.Seconds())
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot of the current counter values
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"images_added":        counterValue(o.imagesAdded),
		"images_removed":      counterValue(o.imagesRemoved),
		"images_stored":       gaugeValue(o.imagesStored),
		"crops_applied":       counterValue(o.cropsApplied),
		"batches_completed":   counterValue(o.batches.WithLabelValues("completed")),
		"batches_failed":      counterValue(o.batches.WithLabelValues("failed")),
		"analyses_successful": counterValue(o.analyses.WithLabelValues("success")),
		"analyses_failed":     counterValue(o.analyses.WithLabelValues("failure")),
	}
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
