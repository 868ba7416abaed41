// Package ffmpeg is the boundary to the external transcoding tool. All
// codec work (probing, lossless trimming, audio muxing, frame encode and
// decode) runs in ffmpeg/ffprobe subprocesses; nothing here decodes video
// in-process.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// VideoInfo is cached probe metadata for one source file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

type Service struct {
	cacheFile string

	mu    sync.Mutex
	cache map[string]VideoInfo

	// runProbe is swapped out by tests; defaults to invoking ffprobe.
	runProbe func(ctx context.Context, path string) ([]byte, error)
}

func NewService(cacheFile string) *Service {
	return &Service{
		cacheFile: cacheFile,
		runProbe:  runFFprobe,
	}
}

// Probe returns duration, dimensions and frame rate for a video file,
// keyed by absolute path through a persistent JSON cache so large source
// clips are analyzed at most once. Entries never expire.
func (s *Service) Probe(ctx context.Context, path string) (VideoInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache == nil {
		s.cache = s.loadCache()
	}
	if info, ok := s.cache[abs]; ok {
		return info, nil
	}

	out, err := s.runProbe(ctx, abs)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed for %s: %w", abs, err)
	}

	info, err := parseProbeOutput(out)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse ffprobe output for %s: %w", abs, err)
	}

	s.cache[abs] = info
	s.saveCache()
	return info, nil
}

func (s *Service) loadCache() map[string]VideoInfo {
	cache := make(map[string]VideoInfo)
	data, err := os.ReadFile(s.cacheFile)
	if err != nil {
		return cache
	}
	// Corrupt cache files are discarded and rebuilt on the next probe.
	if err := json.Unmarshal(data, &cache); err != nil {
		return make(map[string]VideoInfo)
	}
	return cache
}

func (s *Service) saveCache() {
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.cacheFile, data, 0644)
}

func runFFprobe(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, stderr.String())
	}
	return out, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Duration     string `json:"duration"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, err
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info := VideoInfo{
			Width:  stream.Width,
			Height: stream.Height,
			FPS:    parseFrameRate(stream.AvgFrameRate),
		}
		info.Duration, _ = strconv.ParseFloat(stream.Duration, 64)
		if info.Duration == 0 {
			info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
		}
		return info, nil
	}
	return VideoInfo{}, fmt.Errorf("no video stream found")
}

// parseFrameRate decodes ffprobe's fractional rate notation ("30000/1001").
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// ExtractSubclip copies [start, start+duration) out of src without
// re-encoding, so the worker never decodes the full source file.
func ExtractSubclip(ctx context.Context, src, dst string, start, duration float64) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", src,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		dst,
	}
	return run(ctx, "ffmpeg trim", args)
}

// MuxOptions carry the audio settings applied while muxing.
type MuxOptions struct {
	Volume        float64
	FadeIn        float64
	FadeOut       float64
	VideoDuration float64
}

// MuxAudio muxes an audio file onto the rendered video, copying the video
// stream and re-encoding audio to AAC, trimmed to the shorter stream.
func MuxAudio(ctx context.Context, videoPath, audioPath, outPath string, opts MuxOptions) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
	}
	if filters := buildAudioFilters(opts); len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	args = append(args,
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outPath,
	)
	return run(ctx, "ffmpeg mux", args)
}

func buildAudioFilters(opts MuxOptions) []string {
	var filters []string
	if opts.Volume != 1.0 {
		filters = append(filters, fmt.Sprintf("volume=%s", formatSeconds(opts.Volume)))
	}
	if opts.FadeIn > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=in:d=%s", formatSeconds(opts.FadeIn)))
	}
	if opts.FadeOut > 0 {
		fadeOutStart := opts.VideoDuration - opts.FadeOut
		if fadeOutStart > 0 {
			filters = append(filters, fmt.Sprintf(
				"afade=t=out:st=%s:d=%s",
				formatSeconds(fadeOutStart), formatSeconds(opts.FadeOut),
			))
		}
	}
	return filters
}

func run(ctx context.Context, label string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", label, err, lastLines(stderr.String(), 10))
	}
	return nil
}

// lastLines keeps error messages readable; ffmpeg stderr can run to pages.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
