// Package slot discovers user-fillable sub-compositions (photo and text
// slots) inside scenes and assigns first-use ownership across an ordered
// scene sequence.
package slot

import (
	"strings"

	"github.com/ivlev/lottie2video/internal/lottie"
	"github.com/ivlev/lottie2video/internal/scene"
)

// Kind distinguishes what a slot accepts.
type Kind string

const (
	Photo Kind = "photo"
	Text  Kind = "text"
)

// Slot is one user-fillable sub-composition inside a scene.
type Slot struct {
	AssetID string
	Name    string
	Kind    Kind
	// First is true in the scene where the slot occurs first in declared
	// order; later scenes show the same content read-only.
	First bool
}

// Set holds the slots of a single scene, in discovery order.
type Set struct {
	Photos []Slot
	Texts  []Slot
}

// Conventions configures the naming prefixes marking slot compositions.
type Conventions struct {
	PhotoPrefix string
	TextPrefix  string
}

// DefaultConventions matches the authoring template convention.
var DefaultConventions = Conventions{
	PhotoPrefix: "photo_slot",
	TextPrefix:  "text_slot",
}

func (c Conventions) photoPrefix() string {
	if c.PhotoPrefix == "" {
		return DefaultConventions.PhotoPrefix
	}
	return c.PhotoPrefix
}

func (c Conventions) textPrefix() string {
	if c.TextPrefix == "" {
		return DefaultConventions.TextPrefix
	}
	return c.TextPrefix
}

// Resolve walks the precomposition references of a scene asset and collects
// slots by naming convention. A slot composition is a leaf: it is recorded
// and not recursed into. Assets referenced but missing from the document
// contribute nothing — authored templates do contain dangling references.
func Resolve(doc *lottie.Document, sceneAssetID string, conv Conventions) Set {
	var set Set
	walk(doc, sceneAssetID, conv, map[string]bool{}, &set)
	return set
}

func walk(doc *lottie.Document, assetID string, conv Conventions, visited map[string]bool, set *Set) {
	if visited[assetID] {
		return
	}
	visited[assetID] = true

	asset := doc.Asset(assetID)
	if asset == nil || !asset.IsComposition() {
		return
	}
	for _, layer := range asset.Layers {
		if layer.Type != lottie.LayerPrecomp || layer.RefID == "" {
			continue
		}
		ref := doc.Asset(layer.RefID)
		if ref == nil {
			// Висячая ссылка: нулевой вклад, не ошибка.
			continue
		}
		name := strings.ToLower(ref.Name)
		switch {
		case strings.HasPrefix(name, conv.photoPrefix()):
			set.add(Slot{AssetID: ref.ID, Name: ref.Name, Kind: Photo})
		case strings.HasPrefix(name, conv.textPrefix()):
			set.add(Slot{AssetID: ref.ID, Name: ref.Name, Kind: Text})
		default:
			walk(doc, ref.ID, conv, visited, set)
		}
	}
}

// add appends a slot unless the same asset id is already recorded for the
// scene (two layers may reference one slot composition).
func (s *Set) add(sl Slot) {
	list := &s.Photos
	if sl.Kind == Text {
		list = &s.Texts
	}
	for _, have := range *list {
		if have.AssetID == sl.AssetID {
			return
		}
	}
	*list = append(*list, sl)
}

// All returns photo slots followed by text slots.
func (s Set) All() []Slot {
	out := make([]Slot, 0, len(s.Photos)+len(s.Texts))
	out = append(out, s.Photos...)
	out = append(out, s.Texts...)
	return out
}

// ResolveScenes resolves slots for every scene and marks first occurrences:
// the first scene (in the given order) referencing a slot id owns it.
func ResolveScenes(doc *lottie.Document, scenes []scene.Descriptor, conv Conventions) []Set {
	seen := map[string]bool{}
	sets := make([]Set, len(scenes))
	for i, desc := range scenes {
		set := Resolve(doc, desc.AssetID, conv)
		mark(set.Photos, seen)
		mark(set.Texts, seen)
		sets[i] = set
	}
	return sets
}

func mark(slots []Slot, seen map[string]bool) {
	for i := range slots {
		if !seen[slots[i].AssetID] {
			slots[i].First = true
			seen[slots[i].AssetID] = true
		}
	}
}
