package lottie

import (
	"bytes"
	"encoding/json"
	"testing"
)

const sampleDoc = `{
  "v": "5.7.4",
  "nm": "Template",
  "fr": 30,
  "ip": 0,
  "op": 900,
  "w": 1080,
  "h": 1920,
  "meta": {"g": "authoring-tool"},
  "assets": [
    {"id": "image_0", "w": 800, "h": 600, "u": "images/", "p": "img_0.png", "e": 0},
    {"id": "comp_1", "nm": "Scene 1", "layers": [
      {"ty": 2, "nm": "photo", "refId": "image_0", "st": 0, "ip": 0, "op": 150,
       "ks": {"o": {"a": 0, "k": 100}}},
      {"ty": 5, "nm": "caption", "st": 0, "ip": 0, "op": 150,
       "t": {"d": {"k": [{"s": {"t": "Hello", "f": "Arial", "s": 36}, "t": 0}]}}}
    ]}
  ],
  "layers": [
    {"ty": 0, "nm": "Scene 1", "refId": "comp_1", "st": 0, "ip": 0, "op": 150}
  ]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.FrameRate != 30 {
		t.Errorf("FrameRate = %v, want 30", doc.FrameRate)
	}
	if doc.Width != 1080 || doc.Height != 1920 {
		t.Errorf("size = %dx%d, want 1080x1920", doc.Width, doc.Height)
	}
	if len(doc.Assets) != 2 || len(doc.Layers) != 1 {
		t.Fatalf("assets=%d layers=%d, want 2/1", len(doc.Assets), len(doc.Layers))
	}

	media := doc.Asset("image_0")
	if media == nil || !media.IsMedia() || media.IsComposition() {
		t.Fatalf("image_0 should be a media asset, got %+v", media)
	}
	if media.Path != "img_0.png" || media.Dir != "images/" {
		t.Errorf("media path = %q/%q", media.Dir, media.Path)
	}

	comp := doc.Asset("comp_1")
	if comp == nil || !comp.IsComposition() {
		t.Fatalf("comp_1 should be a composition")
	}
	if len(comp.Layers) != 2 {
		t.Fatalf("comp layers = %d, want 2", len(comp.Layers))
	}
	if comp.Layers[0].Type != LayerImage || comp.Layers[0].RefID != "image_0" {
		t.Errorf("layer 0 = %+v", comp.Layers[0])
	}

	text, ok := comp.Layers[1].TextContent()
	if !ok || text != "Hello" {
		t.Errorf("text content = %q, %v; want Hello", text, ok)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"zero frame rate", `{"fr": 0, "assets": [], "layers": []}`},
		{"duplicate asset id", `{"fr": 30, "assets": [{"id":"a","p":"x.png"},{"id":"a","p":"y.png"}], "layers": []}`},
		{"missing asset id", `{"fr": 30, "assets": [{"p":"x.png"}], "layers": []}`},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.doc)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

// Fields the model does not interpret (transforms, fonts, metadata) must
// survive a parse/marshal round trip untouched.
func TestRoundTripKeepsUnknownFields(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("round trip produced invalid JSON: %v", err)
	}
	if _, ok := m["meta"]; !ok {
		t.Error("top-level meta field lost in round trip")
	}

	assets := m["assets"].([]any)
	for _, raw := range assets {
		a := raw.(map[string]any)
		if a["id"] != "comp_1" {
			continue
		}
		layer0 := a["layers"].([]any)[0].(map[string]any)
		if _, ok := layer0["ks"]; !ok {
			t.Error("layer transform block (ks) lost in round trip")
		}
		layer1 := a["layers"].([]any)[1].(map[string]any)
		style := layer1["t"].(map[string]any)["d"].(map[string]any)["k"].([]any)[0].(map[string]any)["s"].(map[string]any)
		if style["f"] != "Arial" {
			t.Errorf("text style font lost, got %v", style["f"])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	before, _ := doc.Marshal()

	cp := doc.Clone()
	cp.Asset("image_0").Path = "other.png"
	cp.Asset("comp_1").Layers[1].SetText("Changed")
	cp.Layers[0].OutPoint = 999

	after, _ := doc.Marshal()
	if !bytes.Equal(before, after) {
		t.Error("mutating the clone changed the original document")
	}

	if text, _ := cp.Asset("comp_1").Layers[1].TextContent(); text != "Changed" {
		t.Errorf("clone text = %q, want Changed", text)
	}
	if cp.Asset("image_0") == doc.Asset("image_0") {
		t.Error("clone shares asset pointers with the original")
	}
}

func TestNormalizeClampsInvertedMarkers(t *testing.T) {
	doc, err := Parse([]byte(`{"fr": 30, "assets": [
		{"id":"c","nm":"Scene 1","layers":[{"ty":4,"nm":"bad","st":0,"ip":50,"op":10}]}
	], "layers": []}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := doc.Asset("c").Layers[0]
	if l.OutPoint < l.InPoint {
		t.Errorf("out-point %v still before in-point %v", l.OutPoint, l.InPoint)
	}
}
