package utils

import "fmt"

// Timecode converts seconds to an HH:MM:SS.mmm timecode for ffmpeg
func Timecode(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
