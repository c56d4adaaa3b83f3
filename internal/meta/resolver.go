package meta

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/castline/castline/internal/assets"
	"github.com/castline/castline/internal/timeline"
)

// endTolerance allows resolved windows to run slightly past the nominal
// total duration, absorbing rounding and encoder drift.
const endTolerance = 10.0

// Resolver holds the (category, name) -> asset catalog for one run.
// Immutable after construction.
type Resolver struct {
	dir     string
	catalog map[string]map[string]*assets.Asset
	logger  *slog.Logger
}

// NewResolver scans the four fixed category subdirectories under dir.
// Missing subdirectories are treated as empty categories, not errors; a
// missing root directory yields an empty catalog.
func NewResolver(dir string, logger *slog.Logger) *Resolver {
	r := &Resolver{
		dir:     dir,
		catalog: make(map[string]map[string]*assets.Asset),
		logger:  logger,
	}

	for _, category := range Categories {
		r.catalog[category] = make(map[string]*assets.Asset)
		sub := filepath.Join(dir, category)
		catalogResolver, err := assets.NewResolver(assets.ResolverConfig{Dir: sub, Logger: logger})
		if err != nil {
			if logger != nil {
				logger.Debug("meta category directory absent", "category", category, "dir", sub)
			}
			continue
		}
		for _, a := range catalogResolver.Assets() {
			r.catalog[category][a.CanonicalName] = a
		}
	}

	if logger != nil {
		total := 0
		for _, byName := range r.catalog {
			total += len(byName)
		}
		logger.Info("meta catalog built", "dir", dir, "clips", total)
	}
	return r
}

// Lookup finds a clip by category and name. The given category is tried
// first, then its pluralized form, mirroring the permissive matching used
// for character assets.
func (r *Resolver) Lookup(category, name string) *assets.Asset {
	canonical := assets.Canonicalize(name)
	for _, cat := range []string{category, category + "s"} {
		byName, ok := r.catalog[cat]
		if !ok {
			continue
		}
		if a, ok := byName[canonical]; ok {
			return a
		}
		for known, a := range byName {
			if strings.Contains(known, canonical) || strings.Contains(canonical, known) {
				return a
			}
		}
	}
	return nil
}

// ResolveDefinition converts one declarative definition into an absolute
// insertion for the compositor. Returns nil (with a log line) when the
// definition is excluded, its clip cannot be found, or its timing is
// invalid. All of these skip just this definition, never the run.
func (r *Resolver) ResolveDefinition(def Definition, totalDuration float64) *timeline.Insertion {
	if !def.Included() {
		if r.logger != nil {
			r.logger.Debug("meta definition excluded", "category", def.Category, "name", def.Name)
		}
		return nil
	}

	asset := r.Lookup(def.Category, def.Name)
	if asset == nil {
		if r.logger != nil {
			r.logger.Warn("meta clip not found, skipping",
				"category", def.Category, "name", def.Name)
		}
		return nil
	}

	start, end, err := ResolveWindow(def.Timing, totalDuration)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("invalid meta timing, skipping",
				"category", def.Category, "name", def.Name, "error", err)
		}
		return nil
	}

	clipStart, clipEnd := resolveClip(def.Clip)

	return &timeline.Insertion{
		Category:   def.Category,
		Name:       def.Name,
		Mode:       placementMode(def),
		Start:      start,
		End:        end,
		SourcePath: asset.Path,
		ClipStart:  clipStart,
		ClipEnd:    clipEnd,
	}
}

// ResolveAll resolves a list of definitions, dropping the invalid ones.
func (r *Resolver) ResolveAll(defs []Definition, totalDuration float64) []timeline.Insertion {
	var out []timeline.Insertion
	for _, def := range defs {
		if ins := r.ResolveDefinition(def, totalDuration); ins != nil {
			out = append(out, *ins)
		}
	}
	return out
}

// ResolveWindow computes the absolute placement window from a timing spec.
// Modes in priority order, first applicable wins:
//
//	(a) start + end        (b) start + duration   (c) start alone (to total)
//	(d) fromEnd seconds    (e) end + duration     (f) end alone (from 0)
//	(g) nothing            -> full [0, total]
//
// The optional offset shifts both computed bounds in every mode. A window
// is invalid when start < 0, end <= start, or end exceeds the total
// duration by more than the fixed tolerance.
func ResolveWindow(t TimingSpec, total float64) (start, end float64, err error) {
	off := t.offset()

	switch {
	case t.Start != nil && t.End != nil:
		start, end = *t.Start+off, *t.End+off
	case t.Start != nil && t.Duration != nil:
		start = *t.Start + off
		end = start + *t.Duration
	case t.Start != nil:
		start, end = *t.Start+off, total+off
	case t.fromEndSeconds() != nil:
		sec := *t.fromEndSeconds()
		start, end = total-sec+off, total+off
	case t.End != nil && t.Duration != nil:
		start, end = *t.End-*t.Duration+off, *t.End+off
	case t.End != nil:
		start, end = off, *t.End+off
	default:
		start, end = off, total+off
	}

	if start < 0 {
		return 0, 0, fmt.Errorf("window start %.3f is negative", start)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("window [%.3f,%.3f) is empty or inverted", start, end)
	}
	if end > total+endTolerance {
		return 0, 0, fmt.Errorf("window end %.3f exceeds total duration %.3f", end, total)
	}
	return start, end, nil
}

// resolveClip computes the trim window within the source clip. A zero end
// means "to end of source".
func resolveClip(c ClipSpec) (start, end float64) {
	if c.Start != nil {
		start = *c.Start
	}
	switch {
	case c.End != nil:
		end = *c.End
	case c.Duration != nil:
		end = start + *c.Duration
	}
	return start, end
}

// placementMode maps the definition's position onto a compositor mode,
// defaulting by category when unset: intros prepend, outros append,
// overlays overlay, everything else replaces.
func placementMode(def Definition) timeline.PlacementMode {
	switch strings.ToLower(def.Position) {
	case "replace":
		return timeline.ModeReplace
	case "before":
		return timeline.ModeBefore
	case "after":
		return timeline.ModeAfter
	case "overlay":
		return timeline.ModeOverlay
	}
	switch strings.TrimSuffix(strings.ToLower(def.Category), "s") {
	case "intro":
		return timeline.ModeBefore
	case "outro":
		return timeline.ModeAfter
	case "overlay":
		return timeline.ModeOverlay
	default:
		return timeline.ModeReplace
	}
}
