// Package assets resolves script names to character media files. A resolver
// scans one directory at construction time, derives canonical names from
// filenames, and answers exact and fuzzy lookups against that immutable set.
package assets

import "errors"

// MediaType distinguishes moving pictures from stills.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
)

// Asset is a resolved source media file. Read-only after the directory scan.
type Asset struct {
	CanonicalName string    `json:"canonical_name"`
	Path          string    `json:"path"`
	Extension     string    `json:"extension"`
	MediaType     MediaType `json:"media_type"`
}

// ErrDirectoryNotFound is returned when the asset directory does not exist.
// This is a configuration error and fatal to the run.
var ErrDirectoryNotFound = errors.New("asset directory not found")

// ResolutionError reports a name that could not be matched to any asset,
// carrying ranked suggestions for diagnostics.
type ResolutionError struct {
	Name        string
	Suggestions []Suggestion
}

func (e *ResolutionError) Error() string {
	if len(e.Suggestions) == 0 {
		return "no asset matches name " + e.Name
	}
	msg := "no asset matches name " + e.Name + " (closest: "
	for i, s := range e.Suggestions {
		if i > 0 {
			msg += ", "
		}
		msg += s.Asset.CanonicalName
		if i == 2 {
			break
		}
	}
	return msg + ")"
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

func mediaTypeOf(ext string) (MediaType, bool) {
	if videoExtensions[ext] {
		return MediaVideo, true
	}
	if imageExtensions[ext] {
		return MediaImage, true
	}
	return "", false
}
