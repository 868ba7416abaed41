package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Enums

type JobStatus string

const (
	JobStatusInQueue   JobStatus = "in_queue"
	JobStatusRendering JobStatus = "rendering"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one requested video generation and its lifecycle state.
// The API layer creates rows in in_queue; the orchestrator and its spawned
// worker are the only writers after that.
type Job struct {
	JobID          string     `json:"job_id"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"`
	QueuePosition  int        `json:"queue_position"`
	RequestData    string     `json:"request_data"`
	OutputFilename *string    `json:"output_filename,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartTime      *time.Time `json:"start_time,omitempty"`
}

// Margins is [top, right, bottom, left] on the wire.
type Margins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

func (m *Margins) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("margin must be an array of integers: %w", err)
	}
	if len(vals) != 4 {
		return fmt.Errorf("margin must have 4 items [top, right, bottom, left], got %d", len(vals))
	}
	m.Top, m.Right, m.Bottom, m.Left = vals[0], vals[1], vals[2], vals[3]
	return nil
}

func (m Margins) MarshalJSON() ([]byte, error) {
	return json.Marshal([]int{m.Top, m.Right, m.Bottom, m.Left})
}

// Placement is the positioning descriptor: either keyword alignment
// (["top|center|bottom", "left|center|right"]) relative to a margin-reduced
// content box, or pixel coordinates ([yCenter, xAnchor, boxWidth]) where the
// horizontal anchor rule depends on text alignment. The mode is decided once
// here at parse time; mixed numeric/string lists are rejected.
type Placement struct {
	Pixel bool

	// Keyword mode
	VAlign string
	HAlign string

	// Pixel mode
	YCenter  int
	XAnchor  int
	BoxWidth int
}

func (p *Placement) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("positionxy must be an array: %w", err)
	}

	switch len(raw) {
	case 2:
		var v, h string
		if err := json.Unmarshal(raw[0], &v); err != nil {
			return fmt.Errorf("positionxy: mixed numeric/string lists are invalid")
		}
		if err := json.Unmarshal(raw[1], &h); err != nil {
			return fmt.Errorf("positionxy: mixed numeric/string lists are invalid")
		}
		p.Pixel = false
		p.VAlign, p.HAlign = v, h
		return nil
	case 3:
		nums := make([]int, 3)
		for i, r := range raw {
			var f float64
			if err := json.Unmarshal(r, &f); err != nil {
				return fmt.Errorf("positionxy: pixel mode requires 3 numbers")
			}
			nums[i] = int(f)
		}
		p.Pixel = true
		p.YCenter, p.XAnchor, p.BoxWidth = nums[0], nums[1], nums[2]
		return nil
	default:
		return fmt.Errorf("positionxy must have 2 or 3 items, got %d", len(raw))
	}
}

func (p Placement) MarshalJSON() ([]byte, error) {
	if p.Pixel {
		return json.Marshal([]int{p.YCenter, p.XAnchor, p.BoxWidth})
	}
	return json.Marshal([]string{p.VAlign, p.HAlign})
}

// KeywordPlacement builds a keyword-mode placement.
func KeywordPlacement(vAlign, hAlign string) Placement {
	return Placement{VAlign: vAlign, HAlign: hAlign}
}

// VideoSettings are the per-job video knobs. Color values live on a [0, 2]
// scale where 1.0 is identity.
type VideoSettings struct {
	Style      string  `json:"style"`
	Exposure   float64 `json:"exposure"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	FadeIn     float64 `json:"fade_in"`
	FadeOut    float64 `json:"fade_out"`
	Duration   float64 `json:"duration"`
	Speed      float64 `json:"speed"`
	Blur       int     `json:"blur"`
}

type AudioSettings struct {
	Audio   string  `json:"audio"` // "random" or "none"
	Volume  float64 `json:"volume"`
	FadeIn  float64 `json:"fade_in"`
	FadeOut float64 `json:"fade_out"`
}

// TextOverlay is a timed block of text composited onto the video. A nil
// StartTime/EndTime means the full video duration.
type TextOverlay struct {
	Text      string    `json:"text"`
	Font      string    `json:"font"`
	FontSize  int       `json:"font_size"`
	FontAlign string    `json:"font_align"`
	FontColor string    `json:"font_color"`
	StartTime *float64  `json:"start_time,omitempty"`
	EndTime   *float64  `json:"end_time,omitempty"`
	FadeIn    float64   `json:"fade_in"`
	FadeOut   float64   `json:"fade_out"`
	Position  Placement `json:"positionxy"`
	Margin    Margins   `json:"margin"`
	Opacity   float64   `json:"opacity"`
}

// Window returns the [start, end) interval the overlay is active in.
func (o *TextOverlay) Window(videoDuration float64) (float64, float64) {
	start, end := 0.0, videoDuration
	if o.StartTime != nil {
		start = *o.StartTime
	}
	if o.EndTime != nil {
		end = *o.EndTime
	}
	return start, end
}

type LogoOverlay struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	Position  Placement `json:"positionxy"` // always keyword mode
	Margin    Margins   `json:"margin"`
	Opacity   float64   `json:"opacity"`
	StartTime *float64  `json:"start_time,omitempty"`
	EndTime   *float64  `json:"end_time,omitempty"`
}

func (l *LogoOverlay) Window(videoDuration float64) (float64, float64) {
	start, end := 0.0, videoDuration
	if l.StartTime != nil {
		start = *l.StartTime
	}
	if l.EndTime != nil {
		end = *l.EndTime
	}
	return start, end
}

// RenderRequest is the parsed, immutable view of a job's request_data.
type RenderRequest struct {
	Video        VideoSettings `json:"video"`
	Audio        *AudioSettings `json:"audio,omitempty"`
	TextOverlays []TextOverlay  `json:"text_overlays,omitempty"`
	Signature    *TextOverlay   `json:"signature,omitempty"`
	Logo         *LogoOverlay   `json:"logo,omitempty"`
}

// ParseRenderRequest decodes request_data and applies the documented
// defaults, so downstream code never re-inspects optional fields.
func ParseRenderRequest(data string) (*RenderRequest, error) {
	req := &RenderRequest{
		Video: VideoSettings{
			Style:      "random",
			Exposure:   1.0,
			Brightness: 1.0,
			Contrast:   1.0,
			Saturation: 1.0,
			Duration:   15,
			Speed:      1.0,
		},
	}

	if err := json.Unmarshal([]byte(data), req); err != nil {
		return nil, fmt.Errorf("invalid request data: %w", err)
	}

	if req.Video.Speed <= 0 {
		req.Video.Speed = 1.0
	}
	if req.Video.Duration <= 0 {
		req.Video.Duration = 15
	}
	if req.Video.Style == "" {
		req.Video.Style = "random"
	}

	if req.Audio != nil {
		if req.Audio.Audio == "" {
			req.Audio.Audio = "random"
		}
		if req.Audio.Volume == 0 {
			req.Audio.Volume = 1.0
		}
	}

	for i := range req.TextOverlays {
		normalizeText(&req.TextOverlays[i], 1.0)
	}
	if req.Signature != nil {
		normalizeText(req.Signature, 0.5)
	}
	if req.Logo != nil {
		if req.Logo.Size <= 0 {
			req.Logo.Size = 150
		}
		if req.Logo.Opacity == 0 {
			req.Logo.Opacity = 1.0
		}
		if req.Logo.Position.Pixel {
			return nil, fmt.Errorf("logo positionxy must use keyword alignment")
		}
		if req.Logo.Position.VAlign == "" {
			req.Logo.Position = KeywordPlacement("bottom", "center")
			req.Logo.Margin = Margins{Top: 0, Right: 25, Bottom: 25, Left: 0}
		}
	}

	return req, nil
}

func normalizeText(o *TextOverlay, defaultOpacity float64) {
	if o.Font == "" {
		o.Font = "Arial"
	}
	if o.FontSize <= 0 {
		o.FontSize = 30
	}
	if o.FontAlign == "" {
		o.FontAlign = "center"
	}
	if o.FontColor == "" {
		o.FontColor = "white"
	}
	if !o.Position.Pixel && o.Position.VAlign == "" {
		o.Position = KeywordPlacement("center", "center")
	}
	if o.Opacity == 0 {
		o.Opacity = defaultOpacity
	}
}
