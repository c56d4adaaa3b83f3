package export

import (
	"strings"
	"testing"

	"github.com/castline/castline/internal/timeline"
)

func TestGenerateEDL_SingleSegment(t *testing.T) {
	segs := []timeline.Segment{{
		ID:             "segment_0",
		SpeakerOrVideo: "alice",
		Start:          0,
		End:            2,
		SourcePath:     "/media/alice.mp4",
	}}

	edl := GenerateEDL(segs, "Episode One", 30.0)

	if !strings.Contains(edl, "TITLE: Episode One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  alice.mp4") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/alice.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_RecordOffsetAccumulates(t *testing.T) {
	segs := []timeline.Segment{
		{ID: "segment_0", SpeakerOrVideo: "alice", Start: 0, End: 1, SourcePath: "/a.mp4"},
		{ID: "segment_1", SpeakerOrVideo: "bob", Start: 1, End: 2.5, SourcePath: "/b.mp4"},
	}

	edl := GenerateEDL(segs, "Multi", 30.0)

	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00") {
		t.Fatalf("first event line mismatch: %q", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        00:00:00:00 00:00:01:15 00:00:01:00 00:00:02:15") {
		t.Fatalf("second event line mismatch or bad record offset: %q", edl)
	}
}

func TestGenerateEDL_SkipsOverlays(t *testing.T) {
	segs := []timeline.Segment{
		{ID: "segment_0", Start: 0, End: 1, SourcePath: "/a.mp4"},
		{ID: "meta_0", Start: 0, End: 1, SourcePath: "/logo.png", Overlay: true},
	}

	edl := GenerateEDL(segs, "Overlay", 30.0)

	if strings.Contains(edl, "logo.png") {
		t.Fatalf("overlay leaked into EDL: %q", edl)
	}
	if strings.Contains(edl, "002") {
		t.Fatalf("overlay consumed an event number: %q", edl)
	}
}

func TestGenerateEDL_ClipTrimWindow(t *testing.T) {
	segs := []timeline.Segment{{
		ID: "meta_0", SpeakerOrVideo: "cutaway", Start: 10, End: 14,
		SourcePath: "/meta/city.mp4", ClipStart: 2, ClipEnd: 6,
	}}

	edl := GenerateEDL(segs, "Trim", 30.0)

	// Source in/out reflect the trim window, record in/out start at zero.
	if !strings.Contains(edl, "001  AX       V     C        00:00:02:00 00:00:06:00 00:00:00:00 00:00:04:00") {
		t.Fatalf("trim window not reflected: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	segs := []timeline.Segment{{ID: "segment_0", Start: 0, End: 1, SourcePath: "/x.mp4"}}
	edl := GenerateEDL(segs, "Drop", 29.97)

	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestSecondsToTimecode(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		fps     int
		want    string
	}{
		{name: "zero", seconds: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", seconds: 1, fps: 30, want: "00:00:01:00"},
		{name: "half second", seconds: 0.5, fps: 30, want: "00:00:00:15"},
		{name: "one minute", seconds: 60, fps: 30, want: "00:01:00:00"},
		{name: "one hour", seconds: 3600, fps: 30, want: "01:00:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := secondsToTimecode(tc.seconds, tc.fps)
			if got != tc.want {
				t.Fatalf("secondsToTimecode(%f, %d) = %q, want %q", tc.seconds, tc.fps, got, tc.want)
			}
		})
	}
}
