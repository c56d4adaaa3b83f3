// Package script parses declarative generation scripts into the canonical
// segment timeline. Three input shapes are supported (an explicit segment
// list, a compact sequence form, and diarization output), detected once at
// the boundary and converted immediately; nothing downstream sniffs shapes.
package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/castline/castline/internal/meta"
	"github.com/castline/castline/internal/timeline"
)

// Format names the serialization of a script document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the document format from a file extension.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// UnsupportedFormatError reports a script document whose shape matches none
// of the supported forms.
type UnsupportedFormatError struct {
	Detail string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported script format: " + e.Detail
}

// Document is a fully parsed script: the canonical segment list plus any
// meta-video definitions that accompanied it.
type Document struct {
	Segments []timeline.Segment
	Meta     []meta.Definition
}

// TotalDuration returns the end of the last segment.
func (d *Document) TotalDuration() float64 {
	var total float64
	for _, s := range d.Segments {
		if s.End > total {
			total = s.End
		}
	}
	return total
}

// explicitEntry is one element of the explicit-list shape.
type explicitEntry struct {
	Speaker  string   `json:"speaker"`
	Video    string   `json:"video"`
	Start    *float64 `json:"start"`
	End      float64  `json:"end"`
	Dialogue string   `json:"dialogue"`
	Audio    string   `json:"audio"`
	Sync     *bool    `json:"sync"`
}

// envelope is the object wrapper shared by the sequence, diarization and
// keyed explicit-list shapes.
type envelope struct {
	Type     string            `json:"type"`
	Segments json.RawMessage   `json:"segments"`
	Meta     []meta.Definition `json:"meta"`

	// sequence fields
	Speakers  []string  `json:"speakers"`
	Durations []float64 `json:"durations"`
	Videos    []string  `json:"videos"`
	Dialogue  []string  `json:"dialogue"`
	Audios    []string  `json:"audios"`
	Sync      []*bool   `json:"sync"`
}

// diarEntry is one element of the diarization shape.
type diarEntry struct {
	SpeakerID  string   `json:"speakerId"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence"`
}

// Parse converts a raw script document into the canonical form. YAML input
// is normalised to JSON first so a single detection path handles both.
func Parse(data []byte, format Format) (*Document, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse YAML script: %w", err)
		}
		data = converted
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, &UnsupportedFormatError{Detail: "empty document"}
	}

	// Bare array: explicit segment list with no meta definitions.
	if strings.HasPrefix(trimmed, "[") {
		var entries []explicitEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &UnsupportedFormatError{Detail: "array does not parse as explicit segment list"}
		}
		segs, err := buildExplicit(entries)
		if err != nil {
			return nil, err
		}
		return &Document{Segments: segs}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &UnsupportedFormatError{Detail: "document is neither an array nor an object"}
	}

	switch env.Type {
	case "sequence":
		segs, err := buildSequence(env)
		if err != nil {
			return nil, err
		}
		return &Document{Segments: segs, Meta: env.Meta}, nil

	case "diarization":
		var entries []diarEntry
		if err := json.Unmarshal(env.Segments, &entries); err != nil {
			return nil, &UnsupportedFormatError{Detail: "diarization document lacks a segments array"}
		}
		return &Document{Segments: buildDiarization(entries), Meta: env.Meta}, nil

	case "":
		if len(env.Segments) == 0 {
			return nil, &UnsupportedFormatError{Detail: "object has neither a type tag nor a segments array"}
		}
		var entries []explicitEntry
		if err := json.Unmarshal(env.Segments, &entries); err != nil {
			return nil, &UnsupportedFormatError{Detail: "segments key does not parse as explicit segment list"}
		}
		segs, err := buildExplicit(entries)
		if err != nil {
			return nil, err
		}
		return &Document{Segments: segs, Meta: env.Meta}, nil

	default:
		return nil, &UnsupportedFormatError{Detail: fmt.Sprintf("unknown type %q", env.Type)}
	}
}

// buildExplicit converts explicit-list entries. An omitted start chains from
// the previous segment's end (0 for the first). Sync defaults true; a
// segment opting out of sync is a cutaway.
func buildExplicit(entries []explicitEntry) ([]timeline.Segment, error) {
	segs := make([]timeline.Segment, 0, len(entries))
	prevEnd := 0.0
	for i, e := range entries {
		name := e.Speaker
		if name == "" {
			name = e.Video
		}
		if name == "" {
			return nil, fmt.Errorf("segment %d names neither a speaker nor a video", i)
		}

		start := prevEnd
		if e.Start != nil {
			start = *e.Start
		}

		sync := true
		if e.Sync != nil {
			sync = *e.Sync
		}
		kind := timeline.KindDialogue
		if !sync {
			kind = timeline.KindCutaway
		}

		segs = append(segs, timeline.Segment{
			ID:             segmentID(i),
			SpeakerOrVideo: name,
			Start:          start,
			End:            e.End,
			RequiresSync:   sync,
			Kind:           kind,
			Dialogue:       e.Dialogue,
			AudioPath:      e.Audio,
		})
		prevEnd = e.End
	}
	return segs, nil
}

// buildSequence converts the compact sequence shape: parallel arrays of
// speakers and durations, each segment starting where the previous ended.
// Missing durations default to one second.
func buildSequence(env envelope) ([]timeline.Segment, error) {
	if len(env.Speakers) == 0 {
		return nil, fmt.Errorf("sequence document has no speakers")
	}

	segs := make([]timeline.Segment, 0, len(env.Speakers))
	cursor := 0.0
	for i, speaker := range env.Speakers {
		dur := 1.0
		if i < len(env.Durations) && env.Durations[i] > 0 {
			dur = env.Durations[i]
		}

		name := speaker
		if i < len(env.Videos) && env.Videos[i] != "" {
			name = env.Videos[i]
		}

		sync := true
		if i < len(env.Sync) && env.Sync[i] != nil {
			sync = *env.Sync[i]
		}
		kind := timeline.KindDialogue
		if !sync {
			kind = timeline.KindCutaway
		}

		var dialogue string
		if i < len(env.Dialogue) {
			dialogue = env.Dialogue[i]
		}
		var audio string
		if i < len(env.Audios) {
			audio = env.Audios[i]
		}

		segs = append(segs, timeline.Segment{
			ID:             segmentID(i),
			SpeakerOrVideo: name,
			Start:          cursor,
			End:            cursor + dur,
			RequiresSync:   sync,
			Kind:           kind,
			Dialogue:       dialogue,
			AudioPath:      audio,
		})
		cursor += dur
	}
	return segs, nil
}

// buildDiarization maps diarization output straight through. Name
// resolution is deliberately deferred; speaker IDs pass as-is.
func buildDiarization(entries []diarEntry) []timeline.Segment {
	segs := make([]timeline.Segment, 0, len(entries))
	for i, e := range entries {
		confidence := 1.0
		if e.Confidence != nil {
			confidence = *e.Confidence
		}
		segs = append(segs, timeline.Segment{
			ID:             segmentID(i),
			SpeakerOrVideo: e.SpeakerID,
			Start:          e.Start,
			End:            e.End,
			RequiresSync:   true,
			Kind:           timeline.KindDialogue,
			Confidence:     confidence,
		})
	}
	return segs
}

func segmentID(index int) string {
	return fmt.Sprintf("segment_%d", index)
}

// yamlToJSON re-serializes a YAML document as JSON so the JSON detection
// path can handle both encodings.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
