package render

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/reelworks/stylecast/internal/config"
	"github.com/reelworks/stylecast/internal/db"
	"github.com/reelworks/stylecast/internal/ffmpeg"
	"github.com/reelworks/stylecast/internal/fonts"
	"github.com/reelworks/stylecast/internal/models"
	"github.com/reelworks/stylecast/internal/overlay"
)

// Worker renders a single claimed job from trimmed source clip to final
// output file, reporting progress and the terminal status to the database.
type Worker struct {
	DB     *db.DB
	Cfg    *config.Config
	FFmpeg *ffmpeg.Service
	Fonts  *fonts.Resolver
	Rand   *rand.Rand
}

// Run drives one job to a terminal state. Every failure path, panics
// included, lands in the failed status with a human-readable message; the
// error return mirrors what was recorded.
func (w *Worker) Run(ctx context.Context, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
			log.Printf("[Worker] Job %s panicked: %v", jobID, r)
			w.fail(jobID, err)
		}
	}()

	if err := w.DB.MarkRendering(ctx, jobID); err != nil {
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	log.Printf("[Worker] Job %s rendering", jobID)

	job, err := w.DB.GetJob(ctx, jobID)
	if err != nil {
		w.fail(jobID, err)
		return err
	}

	req, err := models.ParseRenderRequest(job.RequestData)
	if err != nil {
		w.fail(jobID, err)
		return err
	}

	output, err := w.render(ctx, jobID, req)
	if err != nil {
		w.fail(jobID, err)
		return err
	}

	if err := w.DB.MarkComplete(ctx, jobID, output); err != nil {
		return fmt.Errorf("job %s rendered but status update failed: %w", jobID, err)
	}
	log.Printf("[Worker] Job %s complete: %s", jobID, output)
	return nil
}

// fail records the terminal failure; status writes past this point are
// best-effort since the job is already lost.
func (w *Worker) fail(jobID string, cause error) {
	if dbErr := w.DB.MarkFailed(context.Background(), jobID, cause.Error()); dbErr != nil {
		log.Printf("[Worker] Job %s failed (%v) and status update also failed: %v", jobID, cause, dbErr)
		return
	}
	log.Printf("[Worker] Job %s failed: %v", jobID, cause)
}

func (w *Worker) render(ctx context.Context, jobID string, req *models.RenderRequest) (string, error) {
	video := req.Video
	required := video.Duration * video.Speed

	candidates, err := SelectCandidates(ctx, w.FFmpeg, w.Cfg.StylesDir, video.Style, video.Duration, video.Speed, w.Cfg.MinOutputFPS)
	if err != nil {
		return "", err
	}
	cand := candidates[w.Rand.Intn(len(candidates))]

	skips := LoadSkips(w.Cfg.StyleSkipsFile)[StyleStem(cand.Path)]
	ranges := ValidStartRanges(cand.Info.Duration, required, skips)
	start, err := PickStart(w.Rand, ranges)
	if err != nil {
		return "", fmt.Errorf("style %s: %w", StyleStem(cand.Path), err)
	}
	log.Printf("[Worker] Job %s using %s @ %.2fs for %.2fs", jobID, filepath.Base(cand.Path), start, required)

	trimmed := filepath.Join(w.Cfg.OutputsDir, "trimmed_"+jobID+".mp4")
	if err := ffmpeg.ExtractSubclip(ctx, cand.Path, trimmed, start, required); err != nil {
		return "", err
	}
	defer os.Remove(trimmed)

	// Stream copy keeps the source geometry and frame rate; probe the trim
	// only to be safe against container oddities.
	info, probeErr := w.FFmpeg.Probe(ctx, trimmed)
	if probeErr != nil {
		info = cand.Info
	}

	overlays, err := w.bakeOverlays(req, video.Duration)
	if err != nil {
		return "", err
	}

	temp := filepath.Join(w.Cfg.OutputsDir, "temp_"+jobID+".mp4")
	if err := w.renderFrames(ctx, jobID, trimmed, temp, info, video, overlays); err != nil {
		os.Remove(temp)
		return "", err
	}

	outputName := jobID + ".mp4"
	final := filepath.Join(w.Cfg.OutputsDir, outputName)
	if err := w.attachAudio(ctx, req.Audio, video.Duration, temp, final); err != nil {
		os.Remove(temp)
		return "", err
	}
	return outputName, nil
}

// bakeOverlays renders every overlay once, up front. Overlays that cannot
// be baked are skipped with a log line; the video still renders.
func (w *Worker) bakeOverlays(req *models.RenderRequest, duration float64) ([]*overlay.Prebaked, error) {
	baker := overlay.NewBaker(w.Fonts, w.Cfg.LogoDir)

	var overlays []*overlay.Prebaked
	add := func(p *overlay.Prebaked, err error, what string) {
		if err != nil {
			log.Printf("[Worker] Skipping %s overlay: %v", what, err)
			return
		}
		if p != nil {
			overlays = append(overlays, p)
		}
	}

	for i := range req.TextOverlays {
		p, err := baker.BakeText(req.TextOverlays[i], TargetWidth, TargetHeight, duration)
		add(p, err, "text")
	}
	if req.Signature != nil {
		p, err := baker.BakeText(*req.Signature, TargetWidth, TargetHeight, duration)
		add(p, err, "signature")
	}
	if req.Logo != nil {
		p, err := baker.BakeLogo(*req.Logo, TargetWidth, TargetHeight, duration)
		add(p, err, "logo")
	}
	return overlays, nil
}

// renderFrames is the frame loop: read source frames, retime for speed,
// composite overlays per emitted copy, and stream into the encoder.
func (w *Worker) renderFrames(ctx context.Context, jobID, src, dst string, info ffmpeg.VideoInfo, video models.VideoSettings, overlays []*overlay.Prebaked) error {
	fps := info.FPS
	if fps <= 0 {
		return fmt.Errorf("source %s reports no frame rate", src)
	}

	totalOut := int(video.Duration * fps)
	if totalOut <= 0 {
		return fmt.Errorf("nothing to render: duration %.2f at %.2f fps", video.Duration, fps)
	}
	maxSource := int(math.Ceil(video.Duration * video.Speed * fps))

	reader, err := ffmpeg.OpenFrameReader(ctx, src, info.Width, info.Height)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := ffmpeg.OpenFrameWriter(ctx, dst, TargetWidth, TargetHeight, fps)
	if err != nil {
		return err
	}

	written := 0
	var last *image.NRGBA
	for i := 0; i < maxSource && written < totalOut; i++ {
		frame, readErr := reader.Next()

		processed := last
		if readErr == nil {
			frame = FillFrame(frame)
			ColorAdjust(frame, video)
			frame = Blur(frame, video.Blur)
			processed = frame
			last = frame
		} else if readErr != io.EOF {
			log.Printf("[Worker] Job %s: frame %d unreadable, reusing previous: %v", jobID, i, readErr)
		}
		if processed == nil {
			break
		}

		target := emitTarget(i, video.Speed, totalOut)
		for written < target {
			t := float64(written) / fps
			out := cloneFrame(processed)
			overlay.Composite(out, overlays, t)
			if alpha := MasterFadeAlpha(t, video.Duration, video.FadeIn, video.FadeOut); alpha < 1 {
				ApplyFade(out, alpha)
			}
			if err := writer.Write(out); err != nil {
				writer.Close()
				return err
			}
			written++
		}

		if i > 0 && i%30 == 0 {
			progress := written * 95 / totalOut
			if err := w.DB.UpdateProgress(ctx, jobID, progress); err != nil {
				log.Printf("[Worker] Job %s: progress update failed: %v", jobID, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}
	if written == 0 {
		return fmt.Errorf("no frames decoded from %s", src)
	}
	return nil
}

// attachAudio finalizes the output: either a straight rename, or a mux with
// a randomly chosen audio asset.
func (w *Worker) attachAudio(ctx context.Context, audio *models.AudioSettings, duration float64, temp, final string) error {
	if audio == nil || audio.Audio == "none" {
		return os.Rename(temp, final)
	}

	audioPath, err := w.pickAudio()
	if err != nil {
		log.Printf("[Worker] No audio asset available, rendering silent: %v", err)
		return os.Rename(temp, final)
	}

	opts := ffmpeg.MuxOptions{
		Volume:        audio.Volume,
		FadeIn:        audio.FadeIn,
		FadeOut:       audio.FadeOut,
		VideoDuration: duration,
	}
	if err := ffmpeg.MuxAudio(ctx, temp, audioPath, final, opts); err != nil {
		return err
	}
	return os.Remove(temp)
}

// pickAudio scans the audio directory recursively and draws one file.
func (w *Worker) pickAudio() (string, error) {
	var files []string
	err := filepath.WalkDir(w.Cfg.AudioDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", w.Cfg.AudioDir, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no audio files in %s", w.Cfg.AudioDir)
	}
	return files[w.Rand.Intn(len(files))], nil
}

// emitTarget returns how many output frames must exist after consuming
// source frame i. Values below 1 duplicate frames (slow motion), above 1
// drop them.
func emitTarget(i int, speed float64, totalOut int) int {
	target := int(math.Floor(float64(i+1) / speed))
	if target > totalOut {
		target = totalOut
	}
	return target
}

func cloneFrame(frame *image.NRGBA) *image.NRGBA {
	out := &image.NRGBA{
		Pix:    make([]uint8, len(frame.Pix)),
		Stride: frame.Stride,
		Rect:   frame.Rect,
	}
	copy(out.Pix, frame.Pix)
	return out
}
