package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reelworks/stylecast/internal/ffmpeg"
)

// Candidate is a style video that can supply the requested clip.
type Candidate struct {
	Path string
	Info ffmpeg.VideoInfo
}

// SelectCandidates probes the style library and keeps videos long enough to
// supply the required source footage. For slow-motion requests it also drops
// videos whose retimed frame rate would fall below minFPS. A non-random
// style restricts the pool to that one file.
func SelectCandidates(ctx context.Context, svc *ffmpeg.Service, stylesDir, style string, duration, speed, minFPS float64) ([]Candidate, error) {
	var paths []string
	if style != "" && style != "random" {
		paths = []string{filepath.Join(stylesDir, style+".mp4")}
	} else {
		var err error
		paths, err = filepath.Glob(filepath.Join(stylesDir, "*.mp4"))
		if err != nil {
			return nil, fmt.Errorf("failed to list styles in %s: %w", stylesDir, err)
		}
	}

	required := duration * speed

	var candidates []Candidate
	for _, path := range paths {
		info, err := svc.Probe(ctx, path)
		if err != nil {
			continue
		}
		if info.Duration <= required {
			continue
		}
		if speed < 1.0 && info.FPS*speed < minFPS {
			continue
		}
		candidates = append(candidates, Candidate{Path: path, Info: info})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no style video can supply %.1fs at speed %.2f", duration, speed)
	}
	return candidates, nil
}

// SkipInterval marks a [Start, End] span of a style video that rendered
// clips must not overlap.
type SkipInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// LoadSkips reads the skip-interval file, keyed by style filename stem. A
// missing file means no skips anywhere; a malformed one is logged, since
// silently rendering skipped content is worse than failing loudly.
func LoadSkips(path string) map[string][]SkipInterval {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var skips map[string][]SkipInterval
	if err := json.Unmarshal(data, &skips); err != nil {
		log.Printf("[Worker] Skip file %s is malformed, ignoring all skips: %v", path, err)
		return nil
	}
	return skips
}

// StyleStem returns the skip-map key for a style video path.
func StyleStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// StartRange is a half-open [Start, End) span of valid clip start times.
type StartRange struct {
	Start float64
	End   float64
}

func (r StartRange) length() float64 { return r.End - r.Start }

// ValidStartRanges partitions a video's timeline around its skip intervals
// and returns the start-time spans where a clip of the required source
// length fits entirely inside one skip-free interval. Skips that cover the
// whole timeline degrade to no skips at all rather than making the video
// unusable.
func ValidStartRanges(videoDuration, required float64, skips []SkipInterval) []StartRange {
	sorted := make([]SkipInterval, len(skips))
	copy(sorted, skips)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var intervals []StartRange
	cursor := 0.0
	for _, skip := range sorted {
		if skip.Start > cursor {
			intervals = append(intervals, StartRange{Start: cursor, End: skip.Start})
		}
		if skip.End > cursor {
			cursor = skip.End
		}
	}
	if videoDuration > cursor {
		intervals = append(intervals, StartRange{Start: cursor, End: videoDuration})
	}
	if len(intervals) == 0 {
		intervals = append(intervals, StartRange{Start: 0, End: videoDuration})
	}

	var ranges []StartRange
	for _, iv := range intervals {
		maxStart := iv.End - required
		if maxStart > iv.Start {
			ranges = append(ranges, StartRange{Start: iv.Start, End: maxStart})
		}
	}
	return ranges
}

// PickStart draws a start time uniformly over the union of the valid
// ranges, weighting each range by its length.
func PickStart(rng *rand.Rand, ranges []StartRange) (float64, error) {
	total := 0.0
	for _, r := range ranges {
		total += r.length()
	}
	if total <= 0 {
		return 0, fmt.Errorf("no valid start position")
	}

	point := rng.Float64() * total
	for _, r := range ranges {
		if point < r.length() {
			return r.Start + point, nil
		}
		point -= r.length()
	}
	return ranges[len(ranges)-1].End, nil
}
