package ffmpeg

import (
	"errors"
	"testing"

	"github.com/amaumene/mediasnap/internal/models"
)

func testSession() models.Session {
	return models.Session{
		SessionID:       "plex-1",
		Source:          models.SourcePlex,
		Title:           "Test Movie",
		MediaPath:       "/movies/test.mkv",
		PositionSeconds: 100.0,
		DurationSeconds: 7200.0,
	}
}

func floatPtr(f float64) *float64 { return &f }

func contains(args []string, values ...string) bool {
	for i := 0; i+len(values) <= len(args); i++ {
		match := true
		for j, v := range values {
			if args[i+j] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestPlanScreenshot(t *testing.T) {
	plan, err := PlanScreenshot("ffmpeg", testSession(), 5.0, 2, "/captures/out.jpg")
	if err != nil {
		t.Fatalf("PlanScreenshot failed: %v", err)
	}

	// Target is position + offset
	if plan.TimestampSeconds != 105.0 {
		t.Errorf("expected timestamp 105, got %v", plan.TimestampSeconds)
	}
	if plan.DurationSeconds != 0 {
		t.Errorf("screenshots have no duration, got %v", plan.DurationSeconds)
	}

	// Coarse keyframe seek lands 5s early, fine seek decodes forward
	if !contains(plan.Args, "-noaccurate_seek", "-ss", "00:01:40.000") {
		t.Errorf("missing coarse seek in %v", plan.Args)
	}
	if !contains(plan.Args, "-ss", "00:00:05.000", "-frames:v", "1") {
		t.Errorf("missing fine seek / single frame in %v", plan.Args)
	}
	if !contains(plan.Args, "-q:v", "2") {
		t.Errorf("missing quality in %v", plan.Args)
	}
	if plan.Args[len(plan.Args)-1] != "/captures/out.jpg" {
		t.Errorf("output path must be last, got %v", plan.Args)
	}
}

func TestPlanScreenshotNearStart(t *testing.T) {
	session := testSession()
	session.PositionSeconds = 2.0

	plan, err := PlanScreenshot("ffmpeg", session, 0, 2, "/captures/out.jpg")
	if err != nil {
		t.Fatalf("PlanScreenshot failed: %v", err)
	}
	// Coarse seek clamps at zero, fine seek covers the remainder
	if !contains(plan.Args, "-ss", "00:00:00.000", "-i", "/movies/test.mkv", "-ss", "00:00:02.000") {
		t.Errorf("unexpected seek args: %v", plan.Args)
	}
}

func TestPlanScreenshotNegativeTimestamp(t *testing.T) {
	_, err := PlanScreenshot("ffmpeg", testSession(), -150.0, 2, "/captures/out.jpg")
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestPlanClipRelative(t *testing.T) {
	plan, err := PlanClip("ffmpeg", testSession(), ClipWindow{RelativeSeconds: floatPtr(-30)}, false, 600, "/captures/out.mp4")
	if err != nil {
		t.Fatalf("PlanClip failed: %v", err)
	}
	if plan.TimestampSeconds != 70.0 {
		t.Errorf("expected start 70, got %v", plan.TimestampSeconds)
	}
	if plan.DurationSeconds != 30.0 {
		t.Errorf("expected duration 30, got %v", plan.DurationSeconds)
	}
}

func TestPlanClipRelativeClampedAtZero(t *testing.T) {
	session := testSession()
	session.PositionSeconds = 10.0

	plan, err := PlanClip("ffmpeg", session, ClipWindow{RelativeSeconds: floatPtr(-30)}, false, 600, "/captures/out.mp4")
	if err != nil {
		t.Fatalf("PlanClip failed: %v", err)
	}
	// The window underflows the start of the media: start clamps to zero
	// and the duration shrinks to what actually exists
	if plan.TimestampSeconds != 0.0 {
		t.Errorf("expected start 0, got %v", plan.TimestampSeconds)
	}
	if plan.DurationSeconds != 10.0 {
		t.Errorf("expected duration 10, got %v", plan.DurationSeconds)
	}
}

func TestPlanClipExplicitBounds(t *testing.T) {
	plan, err := PlanClip("ffmpeg", testSession(), ClipWindow{StartSeconds: floatPtr(40), EndSeconds: floatPtr(100)}, false, 600, "/captures/out.mp4")
	if err != nil {
		t.Fatalf("PlanClip failed: %v", err)
	}
	if plan.TimestampSeconds != 40.0 || plan.DurationSeconds != 60.0 {
		t.Errorf("expected 40/60, got %v/%v", plan.TimestampSeconds, plan.DurationSeconds)
	}
}

func TestPlanClipInvalidRanges(t *testing.T) {
	cases := []struct {
		name   string
		window ClipWindow
	}{
		{"empty window", ClipWindow{}},
		{"end before start", ClipWindow{StartSeconds: floatPtr(100), EndSeconds: floatPtr(40)}},
		{"zero duration", ClipWindow{StartSeconds: floatPtr(40), EndSeconds: floatPtr(40)}},
		{"negative start", ClipWindow{StartSeconds: floatPtr(-10), EndSeconds: floatPtr(40)}},
		{"zero relative", ClipWindow{RelativeSeconds: floatPtr(0)}},
	}

	for _, c := range cases {
		if _, err := PlanClip("ffmpeg", testSession(), c.window, false, 600, "/captures/out.mp4"); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%s: expected ErrInvalidRange, got %v", c.name, err)
		}
	}
}

func TestPlanClipAboveCeiling(t *testing.T) {
	_, err := PlanClip("ffmpeg", testSession(), ClipWindow{StartSeconds: floatPtr(0), EndSeconds: floatPtr(700)}, false, 600, "/captures/out.mp4")
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange above the ceiling, got %v", err)
	}
}

func TestPlanClipFastMode(t *testing.T) {
	plan, err := PlanClip("ffmpeg", testSession(), ClipWindow{RelativeSeconds: floatPtr(-30)}, false, 600, "/captures/out.mp4")
	if err != nil {
		t.Fatalf("PlanClip failed: %v", err)
	}

	// Fast mode stream-copies both tracks and normalizes timestamps
	if !contains(plan.Args, "-c", "copy") {
		t.Errorf("fast mode must stream-copy, got %v", plan.Args)
	}
	if !contains(plan.Args, "-avoid_negative_ts", "make_zero") {
		t.Errorf("fast mode must normalize timestamps, got %v", plan.Args)
	}
	if !contains(plan.Args, "-movflags", "+faststart") {
		t.Errorf("missing progressive-container flag in %v", plan.Args)
	}
	if contains(plan.Args, "-c:v", "libx264") {
		t.Errorf("fast mode must not re-encode, got %v", plan.Args)
	}
}

func TestPlanClipPreciseMode(t *testing.T) {
	plan, err := PlanClip("ffmpeg", testSession(), ClipWindow{RelativeSeconds: floatPtr(-30)}, true, 600, "/captures/out.mp4")
	if err != nil {
		t.Fatalf("PlanClip failed: %v", err)
	}

	if !contains(plan.Args, "-c:v", "libx264", "-crf", "18") {
		t.Errorf("precise mode must re-encode video, got %v", plan.Args)
	}
	if !contains(plan.Args, "-c:a", "aac", "-b:a", "192k") {
		t.Errorf("precise mode must re-encode audio, got %v", plan.Args)
	}
	if !contains(plan.Args, "-movflags", "+faststart") {
		t.Errorf("missing progressive-container flag in %v", plan.Args)
	}
	if contains(plan.Args, "-c", "copy") {
		t.Errorf("precise mode must not stream-copy, got %v", plan.Args)
	}
}
