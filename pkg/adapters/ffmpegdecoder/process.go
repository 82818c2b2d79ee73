package ffmpegdecoder

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// process is a running ffmpeg with packets written to stdin and fixed-size
// output chunks collected from stdout by a reader goroutine. Output is
// buffered without bound so that writes to stdin never deadlock against a
// full stdout pipe.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	chunks [][]byte
	exited bool
	err    error
	stderr bytes.Buffer

	done chan struct{}
}

func startProcess(ffmpegPath string, args []string, chunkSize int, keepTail bool) (*process, error) {
	p := &process{done: make(chan struct{})}
	p.cmd = exec.Command(ffmpegPath, args...)
	p.cmd.Stderr = &lockedWriter{mu: &p.mu, buf: &p.stderr}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p.stdin = stdin

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	go p.read(stdout, chunkSize, keepTail)
	return p, nil
}

// read collects chunks until stdout closes. With keepTail a final short
// chunk is kept.
func (p *process) read(stdout io.Reader, chunkSize int, keepTail bool) {
	defer close(p.done)
	for {
		chunk := make([]byte, chunkSize)
		n, err := io.ReadFull(stdout, chunk)
		if err != nil {
			if keepTail && n > 0 {
				p.mu.Lock()
				p.chunks = append(p.chunks, chunk[:n])
				p.mu.Unlock()
			}
			break
		}
		p.mu.Lock()
		p.chunks = append(p.chunks, chunk)
		p.mu.Unlock()
	}
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exited = true
	p.err = err
	p.mu.Unlock()
}

func (p *process) write(data []byte) error {
	if _, err := p.stdin.Write(data); err != nil {
		if exited, exitErr := p.status(); exited {
			return fmt.Errorf("%w: %v: %s", ErrProcessExited, exitErr, p.stderrText())
		}
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// pop returns the oldest output chunk, if any.
func (p *process) pop() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return nil, false
	}
	c := p.chunks[0]
	p.chunks[0] = nil
	p.chunks = p.chunks[1:]
	return c, true
}

func (p *process) status() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited, p.err
}

func (p *process) stderrText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.stderr.String())
}

// finish closes stdin so ffmpeg flushes its remaining output and exits,
// then waits for the reader to collect it. ffmpeg is killed if it has not
// exited within timeout.
func (p *process) finish(timeout time.Duration) error {
	p.stdin.Close()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
	case <-t.C:
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		<-p.done
		return fmt.Errorf("%w: no exit %s after end of input", ErrProcessExited, timeout)
	}
	if _, err := p.status(); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrProcessExited, err, p.stderrText())
	}
	return nil
}

// stop terminates ffmpeg and waits for the reader to finish.
func (p *process) stop() {
	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	<-p.done
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(b)
}
