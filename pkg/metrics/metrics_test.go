package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/avplay/pkg/pipeline"
)

func TestRecord(t *testing.T) {
	source := "test-record.mp4"
	defer Delete(source)

	Record(source, pipeline.Stats{
		PacketsDemuxed:       120,
		PacketsDiscarded:     3,
		VideoFramesDecoded:   60,
		VideoFramesPresented: 58,
		AudioFramesPlayed:    90,
		FramesDropped:        2,
		VideoWaits:           7,
		Seeks:                1,
		PacketQueueDepth:     40,
		VideoQueueDepth:      5,
	}, 2500*time.Millisecond)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"packet queue", testutil.ToFloat64(queueDepth.WithLabelValues(source, "packets")), 40},
		{"video queue", testutil.ToFloat64(queueDepth.WithLabelValues(source, "video")), 5},
		{"demuxed", testutil.ToFloat64(packets.WithLabelValues(source, "demuxed")), 120},
		{"discarded", testutil.ToFloat64(packets.WithLabelValues(source, "discarded")), 3},
		{"video presented", testutil.ToFloat64(frames.WithLabelValues(source, "video", "presented")), 58},
		{"audio presented", testutil.ToFloat64(frames.WithLabelValues(source, "audio", "presented")), 90},
		{"dropped", testutil.ToFloat64(framesDropped.WithLabelValues(source)), 2},
		{"waits", testutil.ToFloat64(videoWaits.WithLabelValues(source)), 7},
		{"seeks", testutil.ToFloat64(seeks.WithLabelValues(source)), 1},
		{"position", testutil.ToFloat64(position.WithLabelValues(source)), 2.5},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDelete(t *testing.T) {
	source := "test-delete.mp4"
	Record(source, pipeline.Stats{Seeks: 4}, 0)
	Delete(source)

	if seeks.DeleteLabelValues(source) {
		t.Error("expected seeks series to be deleted already")
	}
}

func TestHandler(t *testing.T) {
	source := "test-handler.mp4"
	defer Delete(source)
	Record(source, pipeline.Stats{Seeks: 1}, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `avplay_pipeline_seeks_total{source="test-handler.mp4"} 1`) {
		t.Error("expected seeks series in exposition output")
	}
}
