package timeline

import (
	"fmt"
	"log/slog"
	"sort"
)

// ConsistencyError reports a post-composition overlap between non-overlay
// segments. It indicates a compositor defect, not a recoverable input
// condition.
type ConsistencyError struct {
	FirstID  string
	SecondID string
	Detail   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("timeline consistency violated between %s and %s: %s", e.FirstID, e.SecondID, e.Detail)
}

// Compose merges resolved meta-video insertions into the base timeline and
// returns a new Timeline. The base slice is never mutated; each insertion
// step builds a fresh segment list so the non-overlap invariant can be
// checked on the final result.
//
// Insertions are applied in ascending order of their window start, stable
// for ties in their original order.
func Compose(base []Segment, insertions []Insertion, total float64, logger *slog.Logger) (Timeline, error) {
	segs := make([]Segment, len(base))
	copy(segs, base)

	ordered := make([]Insertion, len(insertions))
	copy(ordered, insertions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	for idx, ins := range ordered {
		metaSeg := Segment{
			ID:             fmt.Sprintf("meta_%d", idx),
			SpeakerOrVideo: ins.Name,
			Start:          ins.Start,
			End:            ins.End,
			RequiresSync:   false,
			Kind:           KindMeta,
			SourcePath:     ins.SourcePath,
			ClipStart:      ins.ClipStart,
			ClipEnd:        ins.ClipEnd,
		}

		switch ins.Mode {
		case ModeReplace:
			segs = replaceWindow(segs, metaSeg)
		case ModeOverlay:
			metaSeg.Overlay = true
			segs = append(segs, metaSeg)
		case ModeBefore:
			segs = insertBefore(segs, metaSeg)
		case ModeAfter:
			// The window is assumed to sit past the end of existing content.
			segs = append(segs, metaSeg)
			SortByStart(segs)
		default:
			if logger != nil {
				logger.Warn("unknown placement mode, skipping insertion",
					"name", ins.Name, "mode", string(ins.Mode))
			}
			continue
		}

		if logger != nil {
			logger.Debug("applied meta insertion",
				"name", ins.Name,
				"mode", string(ins.Mode),
				"start", ins.Start,
				"end", ins.End,
			)
		}
	}

	tl := Timeline{Segments: segs, Total: totalOf(segs, total)}
	if err := checkNonOverlap(tl.Segments); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

// replaceWindow removes every non-overlay segment intersecting the meta
// segment's window and inserts the meta segment in its place.
func replaceWindow(segs []Segment, metaSeg Segment) []Segment {
	out := make([]Segment, 0, len(segs)+1)
	for _, s := range segs {
		if !s.Overlay && s.End > metaSeg.Start && s.Start < metaSeg.End {
			continue
		}
		out = append(out, s)
	}
	out = append(out, metaSeg)
	SortByStart(out)
	return out
}

// insertBefore shifts every existing segment forward by the insertion's
// duration and prepends the meta segment at time zero.
func insertBefore(segs []Segment, metaSeg Segment) []Segment {
	shift := metaSeg.Duration()
	out := make([]Segment, 0, len(segs)+1)
	out = append(out, Segment{
		ID:             metaSeg.ID,
		SpeakerOrVideo: metaSeg.SpeakerOrVideo,
		Start:          0,
		End:            shift,
		RequiresSync:   false,
		Kind:           KindMeta,
		SourcePath:     metaSeg.SourcePath,
		ClipStart:      metaSeg.ClipStart,
		ClipEnd:        metaSeg.ClipEnd,
	})
	for _, s := range segs {
		shifted := s
		shifted.Start += shift
		shifted.End += shift
		out = append(out, shifted)
	}
	return out
}

// checkNonOverlap enforces the timeline invariant: consecutive non-overlay
// segments sorted by start must not intersect.
func checkNonOverlap(segs []Segment) error {
	var prev *Segment
	sorted := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if !s.Overlay {
			sorted = append(sorted, s)
		}
	}
	SortByStart(sorted)
	for i := range sorted {
		s := &sorted[i]
		if prev != nil && s.Start < prev.End-timeEpsilon {
			return &ConsistencyError{
				FirstID:  prev.ID,
				SecondID: s.ID,
				Detail: fmt.Sprintf("[%.3f,%.3f) overlaps [%.3f,%.3f)",
					prev.Start, prev.End, s.Start, s.End),
			}
		}
		prev = s
	}
	return nil
}

// timeEpsilon absorbs float rounding when comparing adjacent boundaries.
const timeEpsilon = 1e-9

func totalOf(segs []Segment, fallback float64) float64 {
	total := fallback
	for _, s := range segs {
		if !s.Overlay && s.End > total {
			total = s.End
		}
	}
	return total
}
