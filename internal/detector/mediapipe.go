package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const serviceScript = "mediapipe_service.py"

// ErrServiceTimeout is returned when the landmark service misses the
// response deadline.
var ErrServiceTimeout = errors.New("landmark service timed out")

// ServiceStats counts landmark service activity.
type ServiceStats struct {
	Frames   int
	Starts   int
	Timeouts int
}

// MediaPipeDetector runs a MediaPipe hand landmarker in a child process.
// Frames go out as length-prefixed JPEG and hands come back as one JSON line
// per frame. The process starts on the first frame.
type MediaPipeDetector struct {
	cfg    Config
	script string
	python string

	mu    sync.Mutex
	proc  *service
	idle  *time.Timer
	stats ServiceStats
}

// NewMediaPipeDetector checks cfg and locates the service script.
func NewMediaPipeDetector(cfg Config) (*MediaPipeDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	script := cfg.Script
	if script == "" {
		script = locate(installPaths(filepath.Join("scripts", serviceScript)))
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	python := cfg.Python
	if python == "" {
		python = locate(installPaths(filepath.Join("venv", "bin", "python")))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{cfg: cfg, script: script, python: python}, nil
}

// Detect sends frame to the service and returns the hands it reports.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		p, err := startService(d.python, d.script, d.cfg)
		if err != nil {
			return nil, err
		}
		d.proc = p
		d.stats.Starts++
	}

	line, err := d.proc.roundTrip(buf.GetBytes(), d.cfg.ResponseTimeout)
	if err != nil {
		if errors.Is(err, ErrServiceTimeout) {
			d.stats.Timeouts++
		}
		d.stopLocked()
		return nil, err
	}
	d.stats.Frames++
	d.armIdle()

	return decodeHands(line, d.cfg)
}

// Stats returns a copy of the counters.
func (d *MediaPipeDetector) Stats() ServiceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close stops the service.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.cfg.IdleTimeout <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Reset(d.cfg.IdleTimeout)
		return
	}
	d.idle = time.AfterFunc(d.cfg.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		log.Printf("detector: landmark service idle, stopping")
		d.stopLocked()
	})
}

// service is one running landmark process.
type service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	failed chan error
	quit   chan struct{}
}

func startService(python, script string, cfg Config) (*service, error) {
	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', 2, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start landmark service: %w", err)
	}
	log.Printf("detector: landmark service started (pid %d)", cmd.Process.Pid)

	s := &service{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string),
		failed: make(chan error, 1),
		quit:   make(chan struct{}),
	}
	go s.read(stdout)
	return s, nil
}

func (s *service) read(stdout io.Reader) {
	r := bufio.NewReader(stdout)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			s.failed <- fmt.Errorf("read response: %w", err)
			return
		}
		select {
		case s.lines <- line:
		case <-s.quit:
			return
		}
	}
}

func (s *service) roundTrip(frame []byte, timeout time.Duration) (string, error) {
	if err := writeFrame(s.stdin, frame); err != nil {
		return "", err
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case line := <-s.lines:
		return line, nil
	case err := <-s.failed:
		return "", err
	case <-deadline:
		return "", ErrServiceTimeout
	}
}

// stop closes stdin, which asks the service to exit, and kills it if the
// reader is still blocked.
func (s *service) stop() error {
	close(s.quit)
	s.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		s.cmd.Process.Kill()
		return <-done
	}
}

// writeFrame writes a 4 byte big-endian length followed by data.
func writeFrame(w io.Writer, data []byte) error {
	msg := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(msg, uint32(len(data)))
	copy(msg[4:], data)
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

type serviceHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// decodeHands parses one response line and applies the confidence floor, the
// hand cap and the handedness swap.
func decodeHands(line string, cfg Config) ([]HandLandmarks, error) {
	var resp struct {
		Hands []serviceHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if h.Score < cfg.MinConfidence {
			continue
		}
		lm := h.landmarks()
		if cfg.SwapHandedness {
			lm.Handedness = lm.Handedness.Opposite()
		}
		hands = append(hands, lm)
	}

	if cfg.MaxHands > 0 && len(hands) > cfg.MaxHands {
		sort.SliceStable(hands, func(i, j int) bool { return hands[i].Score > hands[j].Score })
		hands = hands[:cfg.MaxHands]
	}
	return hands, nil
}

// landmarks copies the points as delivered. A short point list stays short so
// the classifier can treat the hand as absent for the tick.
func (h serviceHand) landmarks() HandLandmarks {
	n := len(h.Points)
	if n > NumLandmarks {
		n = NumLandmarks
	}
	return HandLandmarks{
		Points:     append([]Point3D(nil), h.Points[:n]...),
		Handedness: ParseHandedness(h.Handedness),
		Score:      h.Score,
	}
}

// installPaths lists where rel may live: the working directory, its parent,
// next to the binary and under ~/.mudra.
func installPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel), filepath.Join("..", "..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mudra", rel))
	}
	return paths
}

// locate returns the absolute form of the first existing candidate.
func locate(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
