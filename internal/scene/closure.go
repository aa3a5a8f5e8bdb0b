// Package scene isolates single playable scenes out of a multi-scene
// animation document: reference-closure resolution, scene discovery and
// ordering, and extraction of a minimal standalone document.
package scene

import "github.com/ivlev/lottie2video/internal/lottie"

// ResolveClosure computes the transitive set of asset ids reachable from
// rootID via precomposition references. Iterative worklist with a visited
// set, so cyclic and self-referencing documents terminate. Pure: the
// document is not modified.
func ResolveClosure(doc *lottie.Document, rootID string) map[string]bool {
	closure := map[string]bool{rootID: true}
	frontier := []string{rootID}

	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		asset := doc.Asset(id)
		if asset == nil || !asset.IsComposition() {
			// Медиа-ассеты и висячие ссылки не раскрываются дальше.
			continue
		}
		for _, layer := range asset.Layers {
			ref := layer.RefID
			if ref == "" || closure[ref] {
				continue
			}
			closure[ref] = true
			frontier = append(frontier, ref)
		}
	}
	return closure
}
