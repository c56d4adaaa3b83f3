package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ResolverConfig holds the resolver's construction parameters.
type ResolverConfig struct {
	Dir      string
	Synonyms map[string][]string // canonical name -> accepted aliases
	Logger   *slog.Logger
}

// DefaultSynonyms returns the built-in alias table. The table is plain data
// so deployments can extend or replace it without code changes.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"narrator": {"voiceover", "vo"},
	}
}

// Resolver owns the full asset set for one generation run. Immutable after
// construction; safe for concurrent reads.
type Resolver struct {
	dir      string
	byName   map[string]*Asset
	ordered  []*Asset
	synonyms map[string][]string
	logger   *slog.Logger
}

// NewResolver scans the configured directory (non-recursive) and builds the
// canonical name index. Files with unsupported extensions are skipped.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, cfg.Dir)
		}
		return nil, fmt.Errorf("cannot stat asset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, cfg.Dir)
	}

	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}

	r := &Resolver{
		dir:      cfg.Dir,
		byName:   make(map[string]*Asset),
		synonyms: synonyms,
		logger:   cfg.Logger,
	}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read asset directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		mt, ok := mediaTypeOf(ext)
		if !ok {
			continue
		}
		canonical := Canonicalize(entry.Name())
		if canonical == "" {
			continue
		}
		asset := &Asset{
			CanonicalName: canonical,
			Path:          filepath.Join(cfg.Dir, entry.Name()),
			Extension:     ext,
			MediaType:     mt,
		}
		if prev, exists := r.byName[canonical]; exists {
			if r.logger != nil {
				r.logger.Warn("duplicate canonical asset name, keeping first",
					"name", canonical, "kept", prev.Path, "skipped", asset.Path)
			}
			continue
		}
		r.byName[canonical] = asset
		r.ordered = append(r.ordered, asset)
	}

	if r.logger != nil {
		r.logger.Info("asset catalog built", "dir", cfg.Dir, "assets", len(r.ordered))
	}
	return r, nil
}

// Count returns the number of cataloged assets.
func (r *Resolver) Count() int {
	return len(r.ordered)
}

// Assets returns the cataloged assets in scan order.
func (r *Resolver) Assets() []*Asset {
	out := make([]*Asset, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Resolve maps an arbitrary input name to an asset. Exact canonical lookup
// first, then bidirectional substring matching, then the synonym table.
// Returns nil when nothing matches; the caller decides fatal vs skip.
func (r *Resolver) Resolve(name string) *Asset {
	canonical := Canonicalize(name)
	if canonical == "" {
		return nil
	}

	if a, ok := r.byName[canonical]; ok {
		return a
	}

	for _, a := range r.ordered {
		if strings.Contains(a.CanonicalName, canonical) || strings.Contains(canonical, a.CanonicalName) {
			return a
		}
	}

	for _, candidate := range r.synonymCandidates(canonical) {
		if a, ok := r.byName[candidate]; ok {
			return a
		}
		for _, a := range r.ordered {
			if strings.Contains(a.CanonicalName, candidate) || strings.Contains(candidate, a.CanonicalName) {
				return a
			}
		}
	}

	return nil
}

// synonymCandidates expands a canonical name into alternate forms worth
// trying: the "the_" prefix added or removed, plus any configured aliases
// in either direction.
func (r *Resolver) synonymCandidates(canonical string) []string {
	var out []string
	if strings.HasPrefix(canonical, "the_") {
		out = append(out, strings.TrimPrefix(canonical, "the_"))
	} else {
		out = append(out, "the_"+canonical)
	}

	for name, aliases := range r.synonyms {
		for _, alias := range aliases {
			if Canonicalize(alias) == canonical {
				out = append(out, name)
			}
		}
		if name == canonical {
			for _, alias := range aliases {
				out = append(out, Canonicalize(alias))
			}
		}
	}
	return out
}

// Mapping partitions a set of requested names into resolved and missing.
type Mapping struct {
	Resolved map[string]*Asset
	Missing  []string
}

// ValidateMapping resolves every requested name and reports the partition.
// It never fails; whether missing names abort the run is the caller's call.
func (r *Resolver) ValidateMapping(names []string) Mapping {
	m := Mapping{Resolved: make(map[string]*Asset)}
	for _, name := range names {
		if a := r.Resolve(name); a != nil {
			m.Resolved[name] = a
		} else {
			m.Missing = append(m.Missing, name)
		}
	}
	return m
}
