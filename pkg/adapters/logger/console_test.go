package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/avplay/pkg/ports"
)

func TestConsoleLogger_RoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriter(ports.LevelInfo, &out, &errOut)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Warn("warned %d", 3)
	l.Error("failed %d", 4)

	if got := out.String(); got != "shown 2\n" {
		t.Errorf("stdout = %q, want %q", got, "shown 2\n")
	}
	if got := errOut.String(); got != "warned 3\nfailed 4\n" {
		t.Errorf("stderr = %q, want %q", got, "warned 3\nfailed 4\n")
	}
}

func TestConsoleLogger_Quiet(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriter(ports.LevelQuiet, &out, &errOut)

	l.Error("failed")
	if out.Len()+errOut.Len() != 0 {
		t.Error("quiet logger should write nothing")
	}
}

func TestConsoleLogger_WithComponent(t *testing.T) {
	var out bytes.Buffer
	l := NewWriter(ports.LevelDebug, &out, &out)

	l.WithComponent("demux").Debug("task %s", "started")

	if got := out.String(); got != "[demux] task started\n" {
		t.Errorf("got %q", got)
	}
}

func TestConsoleLogger_WithElapsed(t *testing.T) {
	var out bytes.Buffer
	l := NewWriter(ports.LevelInfo, &out, &out)
	start := l.dst.start
	l.dst.now = func() time.Time { return start.Add(1500 * time.Millisecond) }

	l.WithElapsed().WithComponent("seek").Info("landed")

	if got := out.String(); got != "   1.500s [seek] landed\n" {
		t.Errorf("got %q", got)
	}
}

func TestConsoleLogger_ConcurrentLines(t *testing.T) {
	var out bytes.Buffer
	l := NewWriter(ports.LevelInfo, &out, &out)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c ports.Logger) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Info("line %d", j)
			}
		}(l.WithComponent("task"))
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[task] line ") {
			t.Fatalf("interleaved line %q", line)
		}
	}
}
