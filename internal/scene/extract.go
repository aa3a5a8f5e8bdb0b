package scene

import (
	"fmt"
	"log"

	"github.com/ivlev/lottie2video/internal/lottie"
)

// Extracted is a minimal standalone document scoped to one scene: global
// metadata, the closure-reachable assets, and the scene's own layer list.
// Treat it as immutable; content injection works on a clone.
type Extracted struct {
	Desc Descriptor
	Doc  *lottie.Document
}

// Extract builds the standalone document for one scene. The output asset
// table is exactly the reference closure of the scene asset; duration
// follows the implicit-duration rule (see duration in scan.go).
func Extract(doc *lottie.Document, desc Descriptor) (*Extracted, error) {
	root := doc.Asset(desc.AssetID)
	if root == nil || !root.IsComposition() {
		return nil, fmt.Errorf("%w: asset %q", ErrSceneNotFound, desc.AssetID)
	}

	closure := ResolveClosure(doc, desc.AssetID)

	// Клонируем весь документ и отфильтровываем ассеты вне замыкания:
	// так вырезанная сцена не делит изменяемое состояние с источником.
	cp := doc.Clone()
	kept := make([]*lottie.Asset, 0, len(closure))
	for _, a := range cp.Assets {
		if closure[a.ID] {
			kept = append(kept, a)
		}
	}
	// Висячие ссылки попадают в замыкание, но ассета за ними нет: слой в
	// этой позиции просто ничего не рисует.
	for id := range closure {
		if doc.Asset(id) == nil {
			log.Printf("[!] Висячая ссылка на ассет %q пропущена", id)
		}
	}

	rootCopy := cp.Asset(desc.AssetID)

	out := &lottie.Document{
		Version:   cp.Version,
		Name:      desc.Name,
		FrameRate: cp.FrameRate,
		InPoint:   0,
		OutPoint:  float64(desc.Frames),
		Width:     desc.Width,
		Height:    desc.Height,
		Assets:    kept,
		// Собственная копия слоев корня: верхний уровень не должен делить
		// указатели с корневым ассетом в таблице.
		Layers: lottie.CloneLayers(rootCopy.Layers),
	}
	if err := out.Reindex(); err != nil {
		return nil, fmt.Errorf("assemble extracted scene: %w", err)
	}
	return &Extracted{Desc: desc, Doc: out}, nil
}
