// Package meta catalogs auxiliary clips (intros, outros, cutaways, overlays)
// and resolves declarative timing specs into absolute placement windows.
package meta

// Categories are the fixed subdirectories scanned under the meta directory.
var Categories = []string{"intros", "outros", "cutaways", "overlays"}

// Definition is a declarative request to insert an auxiliary clip, parsed
// straight from the script document's meta array.
type Definition struct {
	Category string     `json:"category"`
	Name     string     `json:"name"`
	Timing   TimingSpec `json:"timing"`
	Clip     ClipSpec   `json:"clip"`
	Position string     `json:"position"` // replace|before|after|overlay
	Include  *bool      `json:"include"`  // nil means included
}

// Included reports whether the definition should be processed at all.
func (d Definition) Included() bool {
	return d.Include == nil || *d.Include
}

// TimingSpec declares when the clip occupies the output timeline. Exactly
// which fields are set selects the resolution mode; see ResolveWindow.
type TimingSpec struct {
	Start     *float64 `json:"start"`
	End       *float64 `json:"end"`
	Duration  *float64 `json:"duration"`
	FromEnd   *float64 `json:"fromEnd"`
	BeforeEnd *float64 `json:"beforeEnd"` // accepted alias for fromEnd
	Offset    *float64 `json:"offset"`
}

func (t TimingSpec) fromEndSeconds() *float64 {
	if t.FromEnd != nil {
		return t.FromEnd
	}
	return t.BeforeEnd
}

func (t TimingSpec) offset() float64 {
	if t.Offset != nil {
		return *t.Offset
	}
	return 0
}

// ClipSpec declares the trim window within the source meta asset. An unset
// End with no Duration means "to the end of the source"; the consuming
// stage probes the source's actual length to close the window.
type ClipSpec struct {
	Start    *float64 `json:"start"`
	End      *float64 `json:"end"`
	Duration *float64 `json:"duration"`
}
