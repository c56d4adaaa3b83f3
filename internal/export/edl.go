// Package export renders a composed timeline as a CMX 3600 style EDL so
// the assembled cut can be refined in an external editor.
package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/castline/castline/internal/timeline"
)

func GenerateEDL(segments []timeline.Segment, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffset := 0.0
	event := 0
	for _, seg := range segments {
		if seg.Overlay {
			continue
		}
		event++

		duration := seg.Duration()
		srcIn := secondsToTimecode(seg.ClipStart, fps)
		srcOut := secondsToTimecode(seg.ClipStart+duration, fps)
		recIn := secondsToTimecode(recordOffset, fps)
		recOut := secondsToTimecode(recordOffset+duration, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", event, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName(seg)),
		)
		if seg.SourcePath != "" {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", seg.SourcePath))
		}

		recordOffset += duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func clipName(seg timeline.Segment) string {
	if seg.SourcePath != "" {
		return filepath.Base(seg.SourcePath)
	}
	if seg.SpeakerOrVideo != "" {
		return seg.SpeakerOrVideo
	}
	return seg.ID
}

func secondsToTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
