// Package metrics exports playback pipeline counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/avplay/pkg/pipeline"
	"github.com/user/avplay/pkg/ports"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Items waiting in a staging queue",
	}, []string{"source", "queue"})

	packets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "pipeline",
		Name:      "packets_total",
		Help:      "Packets read from the source by outcome",
	}, []string{"source", "outcome"})

	frames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "pipeline",
		Name:      "frames_total",
		Help:      "Frames by stream and stage",
	}, []string{"source", "stream", "stage"})

	framesDropped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "pipeline",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by transfer or conversion failures",
	}, []string{"source"})

	videoWaits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "presenter",
		Name:      "video_waits_total",
		Help:      "Ticks where video waited for the audio clock",
	}, []string{"source"})

	seeks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "pipeline",
		Name:      "seeks_total",
		Help:      "Seeks performed",
	}, []string{"source"})

	position = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avplay",
		Subsystem: "clock",
		Name:      "position_seconds",
		Help:      "Current master clock position",
	}, []string{"source"})
)

// Record publishes a stats snapshot and clock position for a source.
func Record(source string, s pipeline.Stats, pos time.Duration) {
	queueDepth.WithLabelValues(source, "packets").Set(float64(s.PacketQueueDepth))
	queueDepth.WithLabelValues(source, "video").Set(float64(s.VideoQueueDepth))
	queueDepth.WithLabelValues(source, "audio").Set(float64(s.AudioQueueDepth))

	packets.WithLabelValues(source, "demuxed").Set(float64(s.PacketsDemuxed))
	packets.WithLabelValues(source, "discarded").Set(float64(s.PacketsDiscarded))
	packets.WithLabelValues(source, "error").Set(float64(s.DemuxErrors))
	packets.WithLabelValues(source, "cover").Set(float64(s.CoverUpdates))

	frames.WithLabelValues(source, "video", "decoded").Set(float64(s.VideoFramesDecoded))
	frames.WithLabelValues(source, "audio", "decoded").Set(float64(s.AudioFramesDecoded))
	frames.WithLabelValues(source, "video", "presented").Set(float64(s.VideoFramesPresented))
	frames.WithLabelValues(source, "audio", "presented").Set(float64(s.AudioFramesPlayed))

	framesDropped.WithLabelValues(source).Set(float64(s.FramesDropped))
	videoWaits.WithLabelValues(source).Set(float64(s.VideoWaits))
	seeks.WithLabelValues(source).Set(float64(s.Seeks))
	position.WithLabelValues(source).Set(pos.Seconds())
}

// Delete removes all metrics for a source.
func Delete(source string) {
	for _, q := range []string{"packets", "video", "audio"} {
		queueDepth.DeleteLabelValues(source, q)
	}
	for _, o := range []string{"demuxed", "discarded", "error", "cover"} {
		packets.DeleteLabelValues(source, o)
	}
	for _, stream := range []string{"video", "audio"} {
		for _, stage := range []string{"decoded", "presented"} {
			frames.DeleteLabelValues(source, stream, stage)
		}
	}
	framesDropped.DeleteLabelValues(source)
	videoWaits.DeleteLabelValues(source)
	seeks.DeleteLabelValues(source)
	position.DeleteLabelValues(source)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger ports.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
