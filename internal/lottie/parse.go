package lottie

import (
	"encoding/json"
	"fmt"
)

// take pulls a known field out of the raw map into dst, leaving everything
// unclaimed behind for round-trip retention.
func take[T any](m map[string]json.RawMessage, key string, dst *T) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	delete(m, key)
	return nil
}

func put(m map[string]json.RawMessage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	m[key] = raw
	return nil
}

func decodeRaw(data []byte) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	for _, e := range []error{
		take(m, "v", &d.Version),
		take(m, "nm", &d.Name),
		take(m, "fr", &d.FrameRate),
		take(m, "ip", &d.InPoint),
		take(m, "op", &d.OutPoint),
		take(m, "w", &d.Width),
		take(m, "h", &d.Height),
		take(m, "assets", &d.Assets),
		take(m, "layers", &d.Layers),
	} {
		if e != nil {
			return e
		}
	}
	d.extra = m
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(d.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 9)
	}
	assets := d.Assets
	if assets == nil {
		assets = []*Asset{}
	}
	layers := d.Layers
	if layers == nil {
		layers = []*Layer{}
	}
	for _, e := range []error{
		put(m, "v", d.Version),
		put(m, "nm", d.Name),
		put(m, "fr", d.FrameRate),
		put(m, "ip", d.InPoint),
		put(m, "op", d.OutPoint),
		put(m, "w", d.Width),
		put(m, "h", d.Height),
		put(m, "assets", assets),
		put(m, "layers", layers),
	} {
		if e != nil {
			return nil, e
		}
	}
	return json.Marshal(m)
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	_, a.hasLayers = m["layers"]
	for _, e := range []error{
		take(m, "id", &a.ID),
		take(m, "nm", &a.Name),
		take(m, "w", &a.Width),
		take(m, "h", &a.Height),
		take(m, "op", &a.OutPoint),
		take(m, "layers", &a.Layers),
		take(m, "p", &a.Path),
		take(m, "u", &a.Dir),
		take(m, "e", &a.Embedded),
	} {
		if e != nil {
			return e
		}
	}
	a.extra = m
	return nil
}

func (a *Asset) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(a.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 8)
	}
	if err := put(m, "id", a.ID); err != nil {
		return nil, err
	}
	if a.Name != "" {
		if err := put(m, "nm", a.Name); err != nil {
			return nil, err
		}
	}
	if a.hasLayers {
		layers := a.Layers
		if layers == nil {
			layers = []*Layer{}
		}
		if err := put(m, "layers", layers); err != nil {
			return nil, err
		}
		if a.Width != 0 || a.Height != 0 {
			put(m, "w", a.Width)
			put(m, "h", a.Height)
		}
		if a.OutPoint != nil {
			put(m, "op", *a.OutPoint)
		}
	} else {
		for _, e := range []error{
			put(m, "w", a.Width),
			put(m, "h", a.Height),
			put(m, "p", a.Path),
			put(m, "u", a.Dir),
			put(m, "e", a.Embedded),
		} {
			if e != nil {
				return nil, e
			}
		}
	}
	return json.Marshal(m)
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	for _, e := range []error{
		take(m, "ty", &l.Type),
		take(m, "nm", &l.Name),
		take(m, "refId", &l.RefID),
		take(m, "st", &l.StartTime),
		take(m, "ip", &l.InPoint),
		take(m, "op", &l.OutPoint),
	} {
		if e != nil {
			return e
		}
	}
	// Текстовый блок разбираем только у текстовых слоев; у остальных "t"
	// (если есть) остается нетронутым в extra.
	if l.Type == LayerText {
		if err := take(m, "t", &l.Text); err != nil {
			return err
		}
	}
	l.extra = m
	return nil
}

func (l *Layer) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(l.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 7)
	}
	for _, e := range []error{
		put(m, "ty", l.Type),
		put(m, "nm", l.Name),
		put(m, "st", l.StartTime),
		put(m, "ip", l.InPoint),
		put(m, "op", l.OutPoint),
	} {
		if e != nil {
			return nil, e
		}
	}
	if l.RefID != "" {
		if err := put(m, "refId", l.RefID); err != nil {
			return nil, err
		}
	}
	if l.Text != nil {
		if err := put(m, "t", l.Text); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func (t *TextData) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	if err := take(m, "d", &t.Doc); err != nil {
		return err
	}
	t.extra = m
	return nil
}

func (t *TextData) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(t.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 1)
	}
	if err := put(m, "d", &t.Doc); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (t *TextDocument) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	if err := take(m, "k", &t.Keyframes); err != nil {
		return err
	}
	t.extra = m
	return nil
}

func (t *TextDocument) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(t.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 1)
	}
	kfs := t.Keyframes
	if kfs == nil {
		kfs = []TextKeyframe{}
	}
	if err := put(m, "k", kfs); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (k *TextKeyframe) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	if err := take(m, "s", &k.Style); err != nil {
		return err
	}
	k.extra = m
	return nil
}

func (k *TextKeyframe) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(k.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 1)
	}
	if k.Style != nil {
		if err := put(m, "s", k.Style); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func (s *TextStyle) UnmarshalJSON(data []byte) error {
	m, err := decodeRaw(data)
	if err != nil {
		return err
	}
	if err := take(m, "t", &s.Text); err != nil {
		return err
	}
	s.extra = m
	return nil
}

func (s *TextStyle) MarshalJSON() ([]byte, error) {
	m := cloneRawMap(s.extra)
	if m == nil {
		m = make(map[string]json.RawMessage, 1)
	}
	if err := put(m, "t", s.Text); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
