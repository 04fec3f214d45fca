// Package script provides the presentation scripts that practice recordings
// are analysed against.
//
// A script is an ordered list of parts (slides, sections, talking points).
// Each recorded part carries the id of the script part it belongs to; the
// script resolves that id to the title and image shown on the results page
// and to the keywords used for coverage reporting.
//
// Scripts are authored as YAML files ([LoadFile], [LoadFromReader]) and kept
// in a [Repository]. All repository operations are safe for concurrent use.
package script

import (
	"slices"

	"github.com/MrWong99/podium/internal/pacing"
)

// Script is a complete presentation script.
type Script struct {
	Meta  Meta   `yaml:"script" json:"script"`
	Parts []Part `yaml:"parts" json:"parts"`
}

// Meta holds top-level script metadata.
type Meta struct {
	// ID uniquely identifies the script within a [Repository].
	ID string `yaml:"id" json:"id"`

	// Title is the presentation's display name.
	Title string `yaml:"title" json:"title"`

	// Description is a free-text summary.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Part is one section of a presentation.
type Part struct {
	// ID is referenced by recorded transcript parts.
	ID string `yaml:"id" json:"id"`

	// Title is shown on the transcript card.
	Title string `yaml:"title" json:"title"`

	// Image is a reference to the slide image (path or URL).
	Image string `yaml:"image,omitempty" json:"image,omitempty"`

	// Content is the prepared text of the part.
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// Keywords are the talking points expected to be spoken. When empty,
	// coverage derives keywords from Content.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// Part returns the part with the given id.
func (s *Script) Part(id string) (Part, bool) {
	i := slices.IndexFunc(s.Parts, func(p Part) bool { return p.ID == id })
	if i < 0 {
		return Part{}, false
	}
	return s.Parts[i], true
}

// LookupPart implements [pacing.Lookup]. A known part without an image
// reports [pacing.NoImage].
func (s *Script) LookupPart(id string) (pacing.PartInfo, bool) {
	p, ok := s.Part(id)
	if !ok {
		return pacing.PartInfo{}, false
	}
	info := pacing.PartInfo{Title: p.Title, ImageRef: p.Image}
	if info.ImageRef == "" {
		info.ImageRef = pacing.NoImage
	}
	return info, true
}

var _ pacing.Lookup = (*Script)(nil)
