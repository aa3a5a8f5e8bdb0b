// Package preview is the lighter-weight counterpart of the full render
// pipeline used for live editing: the same extraction and injection logic,
// but producing a single poster frame per scene at reduced resolution. The
// manager bounds how many scene previews are alive at once — previews come
// and go with viewport visibility, so idle ones are evicted LRU.
package preview

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ivlev/lottie2video/internal/inject"
	"github.com/ivlev/lottie2video/internal/lottie"
	"github.com/ivlev/lottie2video/internal/render"
	"github.com/ivlev/lottie2video/internal/scene"
	"github.com/ivlev/lottie2video/internal/slot"
)

// Options tunes the preview manager.
type Options struct {
	MaxActive    int     // cached previews kept alive, default 6
	Scale        float64 // raster downscale factor, default 0.25
	Samples      int     // frame candidates scored per poster, default 4
	ReadyTimeout time.Duration
	Conventions  slot.Conventions
}

func (o Options) maxActive() int {
	if o.MaxActive > 0 {
		return o.MaxActive
	}
	return 6
}

func (o Options) scale() float64 {
	if o.Scale > 0 && o.Scale <= 1 {
		return o.Scale
	}
	return 0.25
}

func (o Options) samples() int {
	if o.Samples > 0 {
		return o.Samples
	}
	return 4
}

// Manager renders and caches scene posters.
type Manager struct {
	doc       *lottie.Document
	newEngine func() render.HeadlessEngine
	opts      Options

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	poster  image.Image
	lastUse time.Time
	active  bool
}

// NewManager builds a preview manager over one parsed document.
func NewManager(doc *lottie.Document, newEngine func() render.HeadlessEngine, opts Options) *Manager {
	return &Manager{
		doc:       doc,
		newEngine: newEngine,
		opts:      opts,
		entries:   make(map[string]*entry),
	}
}

// Acquire returns the poster for a scene, rendering it on first use, and
// marks the preview active (visible). Callers pair it with Release when the
// scene scrolls out of view.
func (m *Manager) Acquire(ctx context.Context, desc scene.Descriptor, content inject.Content) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[desc.AssetID]; ok {
		e.active = true
		e.lastUse = time.Now()
		return e.poster, nil
	}

	poster, err := m.renderPoster(ctx, desc, content)
	if err != nil {
		return nil, err
	}

	m.entries[desc.AssetID] = &entry{poster: poster, lastUse: time.Now(), active: true}
	m.evictLocked()
	return poster, nil
}

// Release marks a scene preview as no longer visible; it stays cached until
// evicted.
func (m *Manager) Release(sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sceneID]; ok {
		e.active = false
		e.lastUse = time.Now()
	}
}

// Active reports how many previews are currently cached.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictLocked drops the least-recently-used idle entries above the cap.
// Active (visible) previews are never evicted.
func (m *Manager) evictLocked() {
	for len(m.entries) > m.opts.maxActive() {
		var victim string
		var oldest time.Time
		for id, e := range m.entries {
			if e.active {
				continue
			}
			if victim == "" || e.lastUse.Before(oldest) {
				victim = id
				oldest = e.lastUse
			}
		}
		if victim == "" {
			return // все видимы, кэш временно превышает лимит
		}
		delete(m.entries, victim)
	}
}

// renderPoster extracts+injects the scene and captures a few candidate
// frames, keeping the sharpest one. A flat intro frame (fade from black)
// makes a useless poster; the contrast score avoids that.
func (m *Manager) renderPoster(ctx context.Context, desc scene.Descriptor, content inject.Content) (image.Image, error) {
	ex, err := scene.Extract(m.doc, desc)
	if err != nil {
		return nil, err
	}
	slots := slot.Resolve(m.doc, desc.AssetID, m.opts.Conventions)
	injected := inject.Apply(ex, slots, content)
	docBytes, err := injected.Doc.Marshal()
	if err != nil {
		return nil, err
	}

	w := int(float64(desc.Width) * m.opts.scale())
	h := int(float64(desc.Height) * m.opts.scale())
	if w < 16 {
		w = 16
	}
	if h < 16 {
		h = 16
	}

	engine := m.newEngine()
	defer engine.Close()

	if err := engine.Load(ctx, docBytes, w, h); err != nil {
		return nil, fmt.Errorf("preview load: %w", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout(m.opts))
	defer cancel()
	if err := engine.AwaitReady(readyCtx); err != nil {
		return nil, fmt.Errorf("preview ready: %w", err)
	}

	var best image.Image
	bestScore := -1.0
	n := m.opts.samples()
	for i := 0; i < n; i++ {
		frame := desc.Frames * i / n
		if err := engine.Seek(ctx, frame); err != nil {
			return nil, err
		}
		img, err := engine.CaptureFrame(ctx)
		if err != nil {
			return nil, err
		}
		if score := sharpness(img); score > bestScore {
			best, bestScore = img, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("preview: scene %s produced no frames", desc.AssetID)
	}
	return best, nil
}

func readyTimeout(o Options) time.Duration {
	if o.ReadyTimeout > 0 {
		return o.ReadyTimeout
	}
	return render.DefaultReadyTimeout
}
