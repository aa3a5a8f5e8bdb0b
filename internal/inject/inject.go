// Package inject substitutes user content (photo sources, text literals)
// into an extracted scene. It always works on a deep copy: the input
// extracted scene is shared across renders and must stay pristine.
package inject

import (
	"log"
	"strings"

	"github.com/ivlev/lottie2video/internal/lottie"
	"github.com/ivlev/lottie2video/internal/scene"
	"github.com/ivlev/lottie2video/internal/slot"
)

// Content keys user-supplied values by slot asset id. Absent slots keep the
// authored defaults.
type Content struct {
	// Photos maps slot id -> image source (URL or data URI).
	Photos map[string]string
	// Texts maps slot id -> literal replacement text.
	Texts map[string]string
}

// Empty reports whether there is nothing to inject.
func (c Content) Empty() bool {
	return len(c.Photos) == 0 && len(c.Texts) == 0
}

// Apply returns a new extracted scene with content substituted. The input is
// never mutated. Unknown slot ids are skipped with a warning.
func Apply(ex *scene.Extracted, slots slot.Set, content Content) *scene.Extracted {
	out := &scene.Extracted{Desc: ex.Desc, Doc: ex.Doc.Clone()}
	if content.Empty() {
		return out
	}

	for _, s := range slots.Photos {
		src, ok := content.Photos[s.AssetID]
		if !ok {
			continue
		}
		if !injectPhoto(out.Doc, s.AssetID, src) {
			log.Printf("[!] Фото-слот %q: в композиции нет image-слоев, значение пропущено", s.AssetID)
		}
	}
	for _, s := range slots.Texts {
		txt, ok := content.Texts[s.AssetID]
		if !ok {
			continue
		}
		if !injectText(out.Doc, s.AssetID, txt) {
			log.Printf("[!] Текст-слот %q: в композиции нет текстовых слоев, значение пропущено", s.AssetID)
		}
	}

	warnUnknown(content.Photos, slots.Photos, "фото")
	warnUnknown(content.Texts, slots.Texts, "текст")
	return out
}

// injectPhoto rewrites the source of every media asset referenced by the
// slot composition's image layers. Two image layers sharing one media asset
// are updated once and both see the change.
func injectPhoto(doc *lottie.Document, slotAssetID, src string) bool {
	comp := doc.Asset(slotAssetID)
	if comp == nil || !comp.IsComposition() {
		return false
	}
	done := false
	for _, layer := range comp.Layers {
		if layer.Type != lottie.LayerImage || layer.RefID == "" {
			continue
		}
		media := doc.Asset(layer.RefID)
		if media == nil || !media.IsMedia() {
			continue
		}
		media.Path = src
		media.Dir = ""
		// Сбрасываем признак кэша, иначе плеер продолжит тянуть исходный
		// путь шаблона. Для data URI наоборот помечаем как встроенный.
		if strings.HasPrefix(src, "data:") {
			media.Embedded = 1
		} else {
			media.Embedded = 0
		}
		done = true
	}
	return done
}

// injectText overwrites the literal at the fixed animated-property path of
// every text layer in the slot composition.
func injectText(doc *lottie.Document, slotAssetID, txt string) bool {
	comp := doc.Asset(slotAssetID)
	if comp == nil || !comp.IsComposition() {
		return false
	}
	done := false
	for _, layer := range comp.Layers {
		if layer.Type != lottie.LayerText {
			continue
		}
		if layer.SetText(txt) {
			done = true
		}
	}
	return done
}

func warnUnknown(values map[string]string, slots []slot.Slot, kind string) {
	for id := range values {
		known := false
		for _, s := range slots {
			if s.AssetID == id {
				known = true
				break
			}
		}
		if !known {
			log.Printf("[!] Неизвестный %s-слот %q проигнорирован", kind, id)
		}
	}
}
