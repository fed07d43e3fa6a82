package ffmpeg

import (
	"errors"
	"strconv"

	"github.com/amaumene/mediasnap/internal/models"
	"github.com/amaumene/mediasnap/internal/utils"
)

var (
	// ErrInvalidTimestamp is returned when a screenshot offset resolves to
	// a negative timestamp
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidRange is returned when a clip window is empty, negative, or
	// above the configured ceiling
	ErrInvalidRange = errors.New("invalid clip range")
)

// Seconds subtracted for the coarse keyframe seek before the fine,
// frame-accurate seek
const seekBuffer = 5.0

// Plan is a fully resolved ffmpeg invocation: the argument vector plus
// the metadata the orchestrator persists alongside it
type Plan struct {
	Args             []string
	OutputPath       string
	TimestampSeconds float64
	DurationSeconds  float64 // 0 for screenshots
}

// ClipWindow is the caller-supplied extract window: either a relative
// window measured backward from the current position, or explicit bounds
type ClipWindow struct {
	RelativeSeconds *float64
	StartSeconds    *float64
	EndSeconds      *float64
}

// PlanScreenshot computes the invocation for a single-frame still at
// position + offset. A negative target is an input error, never clamped.
//
// The seek is two-pass: a coarse keyframe jump (-noaccurate_seek -ss
// before -i) lands near the target cheaply, then a fine output seek
// decodes forward to the exact frame.
func PlanScreenshot(ffmpegPath string, session models.Session, offsetSeconds float64, quality int, outputPath string) (*Plan, error) {
	target := session.PositionSeconds + offsetSeconds
	if target < 0 {
		return nil, ErrInvalidTimestamp
	}

	coarse := target - seekBuffer
	if coarse < 0 {
		coarse = 0
	}
	fine := target - coarse

	args := []string{
		ffmpegPath,
		"-noaccurate_seek",
		"-ss", utils.Timecode(coarse),
		"-i", session.MediaPath,
		"-ss", utils.Timecode(fine),
		"-frames:v", "1",
		"-q:v", strconv.Itoa(quality),
		"-y",
		outputPath,
	}

	return &Plan{
		Args:             args,
		OutputPath:       outputPath,
		TimestampSeconds: target,
	}, nil
}

// PlanClip computes the invocation for a moving extract.
//
// A relative window is anchored at the current position and clamped at
// zero: start = max(0, position - |relative|), duration = position -
// start. Explicit bounds must describe a positive window; neither bound
// is clamped. A window past the end of the media is left alone, ffmpeg
// stops when it exhausts input.
//
// Fast mode stream-copies both tracks (start snaps to the preceding
// keyframe); precise mode re-encodes for an exact start.
func PlanClip(ffmpegPath string, session models.Session, window ClipWindow, precise bool, maxSeconds float64, outputPath string) (*Plan, error) {
	start, duration, err := resolveWindow(session, window)
	if err != nil {
		return nil, err
	}
	if maxSeconds > 0 && duration > maxSeconds {
		return nil, ErrInvalidRange
	}

	args := []string{
		ffmpegPath,
		"-ss", utils.Timecode(start),
		"-i", session.MediaPath,
		"-t", utils.Timecode(duration),
	}
	if precise {
		args = append(args,
			"-c:v", "libx264",
			"-crf", "18",
			"-preset", "veryfast",
			"-c:a", "aac",
			"-b:a", "192k",
		)
	} else {
		args = append(args,
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
		)
	}
	args = append(args,
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	return &Plan{
		Args:             args,
		OutputPath:       outputPath,
		TimestampSeconds: start,
		DurationSeconds:  duration,
	}, nil
}

func resolveWindow(session models.Session, window ClipWindow) (start, duration float64, err error) {
	switch {
	case window.RelativeSeconds != nil:
		rel := *window.RelativeSeconds
		if rel < 0 {
			rel = -rel
		}
		if rel == 0 {
			return 0, 0, ErrInvalidRange
		}
		start = session.PositionSeconds - rel
		if start < 0 {
			start = 0
		}
		duration = session.PositionSeconds - start
		if duration <= 0 {
			return 0, 0, ErrInvalidRange
		}
		return start, duration, nil

	case window.StartSeconds != nil && window.EndSeconds != nil:
		start = *window.StartSeconds
		if start < 0 {
			return 0, 0, ErrInvalidRange
		}
		duration = *window.EndSeconds - start
		if duration <= 0 {
			return 0, 0, ErrInvalidRange
		}
		return start, duration, nil

	default:
		return 0, 0, ErrInvalidRange
	}
}
