package scene

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ivlev/lottie2video/internal/lottie"
)

// Descriptor identifies one playable scene of a document.
type Descriptor struct {
	AssetID string
	Name    string
	Index   int // numeric suffix from the name, or position for caller-supplied orders
	Width   int
	Height  int
	Frames  int // derived frame duration, see duration()
}

// Options controls scene discovery and name matching.
type Options struct {
	// Keywords mark a composition name as a scene ("Scene 14", "Сцена 2").
	// Matching is case-insensitive. Empty means DefaultKeywords.
	Keywords []string
}

// DefaultKeywords covers the naming locales seen in authored templates.
var DefaultKeywords = []string{"scene", "сцена"}

func (o Options) keywords() []string {
	if len(o.Keywords) == 0 {
		return DefaultKeywords
	}
	return o.Keywords
}

var trailingNumber = regexp.MustCompile(`(\d+)\s*$`)

// sceneIndex extracts the numeric suffix from a scene-like name, reporting
// whether the name matches the scene convention at all.
func sceneIndex(name string, keywords []string) (int, bool) {
	lower := strings.ToLower(name)
	matched := false
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = true
			break
		}
	}
	if !matched {
		return 0, false
	}
	m := trailingNumber.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Scan discovers scene compositions by naming convention and returns them
// ordered by numeric suffix. The order determines slot first-use ownership.
func Scan(doc *lottie.Document, opts Options) []Descriptor {
	kws := opts.keywords()
	var out []Descriptor
	for _, a := range doc.Assets {
		if !a.IsComposition() {
			continue
		}
		idx, ok := sceneIndex(a.Name, kws)
		if !ok {
			continue
		}
		out = append(out, describe(doc, a, idx))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// FromIDs builds descriptors for an explicit ordered id list (the caller's
// order wins over any numeric suffix).
func FromIDs(doc *lottie.Document, ids []string, opts Options) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(ids))
	for i, id := range ids {
		assetID, err := Match(doc, id, opts)
		if err != nil {
			return nil, err
		}
		a := doc.Asset(assetID)
		d := describe(doc, a, i)
		out = append(out, d)
	}
	return out, nil
}

func describe(doc *lottie.Document, a *lottie.Asset, idx int) Descriptor {
	w, h := a.Width, a.Height
	// У части авторских сцен размеры не проставлены — берем из документа.
	if w == 0 {
		w = doc.Width
	}
	if h == 0 {
		h = doc.Height
	}
	return Descriptor{
		AssetID: a.ID,
		Name:    a.Name,
		Index:   idx,
		Width:   w,
		Height:  h,
		Frames:  duration(a),
	}
}

// duration applies the implicit-duration rule: an explicit non-zero
// out-point wins, otherwise the latest-ending layer defines the playable
// length.
func duration(a *lottie.Asset) int {
	if a.OutPoint != nil && *a.OutPoint > 0 {
		return int(*a.OutPoint)
	}
	max := 0.0
	for _, l := range a.Layers {
		if l.OutPoint > max {
			max = l.OutPoint
		}
	}
	return int(max)
}

// String implements fmt.Stringer for log lines.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%q, %dx%d, %d frames)", d.AssetID, d.Name, d.Width, d.Height, d.Frames)
}
