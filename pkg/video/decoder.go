package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
)

// Decoder runs one persistent ffmpeg process: Annex-B H264 goes in on
// stdin, MJPEG frames come out on stdout at a capped rate.
type Decoder struct {
	fps    int
	logger *zap.SugaredLogger
	frames *watch.Cell[[]byte]

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

// NewDecoder creates a decoder publishing JPEG frames into frames.
func NewDecoder(fps int, frames *watch.Cell[[]byte], logger *zap.SugaredLogger) *Decoder {
	if fps < 1 {
		fps = 1
	}
	return &Decoder{fps: fps, frames: frames, logger: logger}
}

// Start launches ffmpeg. The process is killed when ctx is cancelled.
func (d *Decoder) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-f", "h264", // Input format
		"-i", "pipe:0", // Read from stdin
		"-vf", "fps="+strconv.Itoa(d.fps),
		"-f", "image2pipe", // Output as pipe
		"-vcodec", "mjpeg", // Output as JPEG
		"-q:v", "5", // Quality (1-31, lower is better)
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin

	go d.readFrames(stdout)
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			d.logger.Warnw("ffmpeg exited", "error", err)
		}
	}()

	return nil
}

// Write feeds Annex-B H264 data to the decoder.
func (d *Decoder) Write(nal []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.stdin == nil {
		return io.ErrClosedPipe
	}
	_, err := d.stdin.Write(nal)
	return err
}

// Close terminates ffmpeg.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if d.stdin != nil {
		d.stdin.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
}

func (d *Decoder) readFrames(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		if !plausibleFrame(frame) {
			continue
		}
		if err := d.frames.Publish(frame); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		d.logger.Warnw("ffmpeg output error", "error", err)
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc that yields whole JPEG images from an
// MJPEG byte stream. Bytes before a start-of-image marker are skipped.
// 0xFFD9 cannot occur inside entropy-coded data, so the first EOI after
// SOI ends the image.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins the next marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// plausibleFrame rejects tiny, undecodable or uniformly dark frames that
// ffmpeg emits before the first keyframe arrives.
func plausibleFrame(data []byte) bool {
	if len(data) < 500 {
		return false
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}

	bounds := img.Bounds()
	if bounds.Dx() < 16 || bounds.Dy() < 16 {
		return false
	}

	var sum, samples int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += max(bounds.Dy()/10, 1) {
		for x := bounds.Min.X; x < bounds.Max.X; x += max(bounds.Dx()/10, 1) {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += int(r>>8) + int(g>>8) + int(b>>8)
			samples += 3
		}
	}

	return samples > 0 && sum/samples >= 8
}
