package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// FrameReader decodes a video file into a sequence of NRGBA frames through
// an ffmpeg rawvideo pipe at the file's native resolution.
type FrameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	width  int
	height int
}

func OpenFrameReader(ctx context.Context, path string, width, height int) (*FrameReader, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder pipe: %w", err)
	}

	r := &FrameReader{cmd: cmd, stdout: stdout, width: width, height: height}
	cmd.Stderr = &r.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start frame decoder: %w", err)
	}
	return r, nil
}

// Next returns the next decoded frame, io.EOF at clean end of stream, or an
// error when the stream truncates mid-frame.
func (r *FrameReader) Next() (*image.NRGBA, error) {
	frame := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	n, err := io.ReadFull(r.stdout, frame.Pix)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("short frame read (%d of %d bytes): %w", n, len(frame.Pix), err)
	}
	return frame, nil
}

func (r *FrameReader) Close() error {
	r.stdout.Close()
	// The decoder is usually still mid-stream when the render loop stops
	// early; a kill-induced exit error is expected there.
	_ = r.cmd.Wait()
	return nil
}

// FrameWriter encodes NRGBA frames into an H.264 file through an ffmpeg
// rawvideo pipe at a fixed size and frame rate.
type FrameWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
	closed bool
}

func OpenFrameWriter(ctx context.Context, path string, width, height int, fps float64) (*FrameWriter, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder pipe: %w", err)
	}

	w := &FrameWriter{cmd: cmd, stdin: stdin, width: width, height: height}
	cmd.Stderr = &w.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start frame encoder: %w", err)
	}
	return w, nil
}

func (w *FrameWriter) Write(frame *image.NRGBA) error {
	bounds := frame.Bounds()
	if bounds.Dx() != w.width || bounds.Dy() != w.height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d",
			bounds.Dx(), bounds.Dy(), w.width, w.height)
	}
	if _, err := w.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("frame write failed: %w: %s", err, lastLines(w.stderr.String(), 5))
	}
	return nil
}

// Close flushes the pipe and waits for the encoder to finalize the file.
func (w *FrameWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("frame encoder failed: %w: %s", err, lastLines(w.stderr.String(), 10))
	}
	return nil
}
