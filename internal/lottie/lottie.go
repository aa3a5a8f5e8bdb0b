// Package lottie holds a typed model of the bodymovin animation document.
// Only the fields the pipeline interprets are modelled; everything else is
// retained as raw JSON so a parse/marshal round trip hands the player an
// intact document.
package lottie

import (
	"encoding/json"
	"fmt"
)

// LayerType is the "ty" code of a layer.
type LayerType int

const (
	LayerPrecomp LayerType = 0
	LayerSolid   LayerType = 1
	LayerImage   LayerType = 2
	LayerNull    LayerType = 3
	LayerShape   LayerType = 4
	LayerText    LayerType = 5
)

// Document is the root of an animation document.
type Document struct {
	Version   string
	Name      string
	FrameRate float64
	InPoint   float64
	OutPoint  float64
	Width     int
	Height    int
	Assets    []*Asset
	Layers    []*Layer

	extra map[string]json.RawMessage
	index map[string]*Asset
}

// Asset is one entry of the document's asset table: either a composition
// (has Layers) or a media reference (has Path).
type Asset struct {
	ID       string
	Name     string
	Width    int
	Height   int
	OutPoint *float64 // explicit duration marker, usually absent
	Layers   []*Layer
	Path     string // "p": file name or full URL for media assets
	Dir      string // "u": directory prefix for media assets
	Embedded int    // "e": 1 when Path is a data URI

	hasLayers bool
	extra     map[string]json.RawMessage
}

// Layer is one element of a composition's timeline.
type Layer struct {
	Type      LayerType
	Name      string
	RefID     string
	StartTime float64
	InPoint   float64
	OutPoint  float64
	Text      *TextData // only for LayerText

	extra map[string]json.RawMessage
}

// TextData mirrors the animated-text property block ("t") of a text layer.
// The literal string lives at the fixed path t.d.k[0].s.t.
type TextData struct {
	Doc TextDocument // "d"

	extra map[string]json.RawMessage
}

// TextDocument is the keyframed text document ("d").
type TextDocument struct {
	Keyframes []TextKeyframe // "k"

	extra map[string]json.RawMessage
}

// TextKeyframe is one entry of the text document's keyframe list.
type TextKeyframe struct {
	Style *TextStyle // "s"

	extra map[string]json.RawMessage
}

// TextStyle carries the literal text content ("t") plus untouched styling.
type TextStyle struct {
	Text string

	extra map[string]json.RawMessage
}

// Parse decodes and validates an animation document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.FrameRate <= 0 {
		return nil, fmt.Errorf("document frame rate %v: must be positive", doc.FrameRate)
	}
	if err := doc.reindex(); err != nil {
		return nil, err
	}
	doc.normalize()
	return &doc, nil
}

// Marshal re-encodes the document for handing to a player.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Asset returns the asset with the given id, or nil.
func (d *Document) Asset(id string) *Asset {
	return d.index[id]
}

// IsComposition reports whether the asset carries its own layer list.
func (a *Asset) IsComposition() bool {
	return a.hasLayers
}

// IsMedia reports whether the asset references an image or video resource.
func (a *Asset) IsMedia() bool {
	return a.Path != ""
}

// SetText overwrites the literal string of every keyframe of a text layer.
// Returns false when the layer carries no text block.
func (l *Layer) SetText(s string) bool {
	if l.Text == nil {
		return false
	}
	ok := false
	for i := range l.Text.Doc.Keyframes {
		if st := l.Text.Doc.Keyframes[i].Style; st != nil {
			st.Text = s
			ok = true
		}
	}
	return ok
}

// TextContent returns the literal string of the first keyframe, if any.
func (l *Layer) TextContent() (string, bool) {
	if l.Text == nil || len(l.Text.Doc.Keyframes) == 0 {
		return "", false
	}
	st := l.Text.Doc.Keyframes[0].Style
	if st == nil {
		return "", false
	}
	return st.Text, true
}

// Reindex rebuilds the asset-id lookup after the caller reassembled the
// Assets slice (the extractor does this when filtering to a closure).
func (d *Document) Reindex() error {
	return d.reindex()
}

func (d *Document) reindex() error {
	d.index = make(map[string]*Asset, len(d.Assets))
	for _, a := range d.Assets {
		if a.ID == "" {
			return fmt.Errorf("asset %q: missing id", a.Name)
		}
		if _, dup := d.index[a.ID]; dup {
			return fmt.Errorf("duplicate asset id %q", a.ID)
		}
		d.index[a.ID] = a
	}
	return nil
}

// normalize clamps inverted in/out markers authoring tools occasionally emit.
func (d *Document) normalize() {
	fix := func(layers []*Layer) {
		for _, l := range layers {
			if l.OutPoint != 0 && l.OutPoint < l.InPoint {
				l.OutPoint = l.InPoint
			}
		}
	}
	fix(d.Layers)
	for _, a := range d.Assets {
		fix(a.Layers)
	}
}
