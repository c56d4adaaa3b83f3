// Package timeline defines the canonical segment model and the compositor
// that merges meta-video insertions into a base segment timeline.
package timeline

import "sort"

// Kind classifies a segment on the timeline.
type Kind string

const (
	KindDialogue Kind = "dialogue"
	KindCutaway  Kind = "cutaway"
	KindMeta     Kind = "meta"
)

// PlacementMode describes how a meta-video insertion interacts with the
// existing timeline.
type PlacementMode string

const (
	ModeReplace PlacementMode = "replace"
	ModeBefore  PlacementMode = "before"
	ModeAfter   PlacementMode = "after"
	ModeOverlay PlacementMode = "overlay"
)

// Segment is a scheduled unit of the output timeline. Times are absolute
// seconds from the start of the final video.
type Segment struct {
	ID             string  `json:"id"`
	SpeakerOrVideo string  `json:"speaker_or_video"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	RequiresSync   bool    `json:"requires_sync"`
	Kind           Kind    `json:"kind"`
	Dialogue       string  `json:"dialogue,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`

	// Overlay marks a segment produced for visual compositing on top of the
	// base track rather than concatenated into it.
	Overlay bool `json:"overlay,omitempty"`

	// SourcePath is the resolved media asset backing this segment. Set by
	// the engine once name resolution has happened.
	SourcePath string `json:"source_path,omitempty"`

	// AudioPath optionally names a per-segment audio file handed to the
	// lip-sync service alongside the video clip.
	AudioPath string `json:"audio_path,omitempty"`

	// ClipStart/ClipEnd trim a window within the source asset. A ClipEnd of
	// zero means "to the end of the source" and is resolved by probing the
	// source before processing.
	ClipStart float64 `json:"clip_start,omitempty"`
	ClipEnd   float64 `json:"clip_end,omitempty"`
}

// Duration returns the scheduled length of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Insertion is a fully resolved meta-video placement: an absolute timing
// window, a trim window within the source clip, and a placement mode.
type Insertion struct {
	Category   string
	Name       string
	Mode       PlacementMode
	Start      float64
	End        float64
	SourcePath string
	ClipStart  float64
	ClipEnd    float64 // 0 = to end of source
}

// Duration returns the length of the insertion window in seconds.
func (i Insertion) Duration() float64 {
	return i.End - i.Start
}

// Timeline is an ordered sequence of segments. Non-overlay segments never
// overlap; overlay segments may coexist with base content.
type Timeline struct {
	Segments []Segment
	Total    float64
}

// SortByStart orders segments by start time, stable for ties.
func SortByStart(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Start < segs[j].Start
	})
}
