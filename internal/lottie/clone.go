package lottie

import "encoding/json"

// Clone returns a structurally independent deep copy of the document. The
// copy shares nothing mutable with the original, so injecting content for one
// scene never leaks into another scene extracted from the same source.
func (d *Document) Clone() *Document {
	out := &Document{
		Version:   d.Version,
		Name:      d.Name,
		FrameRate: d.FrameRate,
		InPoint:   d.InPoint,
		OutPoint:  d.OutPoint,
		Width:     d.Width,
		Height:    d.Height,
		extra:     cloneRawMap(d.extra),
	}
	if d.Assets != nil {
		out.Assets = make([]*Asset, len(d.Assets))
		for i, a := range d.Assets {
			out.Assets[i] = a.clone()
		}
	}
	out.Layers = cloneLayers(d.Layers)
	// reindex не может вернуть ошибку: ids уже проверены при парсинге
	_ = out.reindex()
	return out
}

func (a *Asset) clone() *Asset {
	out := &Asset{
		ID:        a.ID,
		Name:      a.Name,
		Width:     a.Width,
		Height:    a.Height,
		Layers:    cloneLayers(a.Layers),
		Path:      a.Path,
		Dir:       a.Dir,
		Embedded:  a.Embedded,
		hasLayers: a.hasLayers,
		extra:     cloneRawMap(a.extra),
	}
	if a.OutPoint != nil {
		op := *a.OutPoint
		out.OutPoint = &op
	}
	return out
}

// CloneLayers deep-copies a layer list.
func CloneLayers(layers []*Layer) []*Layer {
	return cloneLayers(layers)
}

func cloneLayers(layers []*Layer) []*Layer {
	if layers == nil {
		return nil
	}
	out := make([]*Layer, len(layers))
	for i, l := range layers {
		cp := &Layer{
			Type:      l.Type,
			Name:      l.Name,
			RefID:     l.RefID,
			StartTime: l.StartTime,
			InPoint:   l.InPoint,
			OutPoint:  l.OutPoint,
			extra:     cloneRawMap(l.extra),
		}
		if l.Text != nil {
			cp.Text = l.Text.clone()
		}
		out[i] = cp
	}
	return out
}

func (t *TextData) clone() *TextData {
	out := &TextData{extra: cloneRawMap(t.extra)}
	out.Doc.extra = cloneRawMap(t.Doc.extra)
	if t.Doc.Keyframes != nil {
		out.Doc.Keyframes = make([]TextKeyframe, len(t.Doc.Keyframes))
		for i, k := range t.Doc.Keyframes {
			ck := TextKeyframe{extra: cloneRawMap(k.extra)}
			if k.Style != nil {
				ck.Style = &TextStyle{Text: k.Style.Text, extra: cloneRawMap(k.Style.extra)}
			}
			out.Doc.Keyframes[i] = ck
		}
	}
	return out
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
