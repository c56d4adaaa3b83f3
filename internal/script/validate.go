package script

import (
	"fmt"

	"github.com/castline/castline/internal/timeline"
)

// Violation describes one timing problem found in a parsed segment list.
type Violation struct {
	Index     int
	SegmentID string
	Reason    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.SegmentID, v.Reason)
}

// Validate checks segments in appearance order (never re-sorted) and
// returns every violation found rather than stopping at the first:
// non-negative starts, positive durations, and no overlap with the
// immediately preceding segment.
func Validate(segs []timeline.Segment) []Violation {
	var out []Violation
	for i, s := range segs {
		if s.Start < 0 {
			out = append(out, Violation{
				Index:     i,
				SegmentID: s.ID,
				Reason:    fmt.Sprintf("start time %.3f is negative", s.Start),
			})
		}
		if s.End <= s.Start {
			out = append(out, Violation{
				Index:     i,
				SegmentID: s.ID,
				Reason:    fmt.Sprintf("end time %.3f is not after start time %.3f", s.End, s.Start),
			})
		}
		if i > 0 {
			prev := segs[i-1]
			if s.Start < prev.End {
				out = append(out, Violation{
					Index:     i,
					SegmentID: s.ID,
					Reason: fmt.Sprintf("starts at %.3f before previous segment %s ends at %.3f",
						s.Start, prev.ID, prev.End),
				})
			}
		}
	}
	return out
}
