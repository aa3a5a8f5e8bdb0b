package scene

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/ivlev/lottie2video/internal/lottie"
)

// templateDoc models a multi-scene composite: scene comps named by
// convention, nested sub-comps, shared media, one cycle and one dangling
// reference.
const templateDoc = `{
  "v": "5.7.4",
  "fr": 30,
  "w": 1080,
  "h": 1920,
  "assets": [
    {"id": "scene14", "nm": "Scene 14", "w": 1080, "h": 1920, "layers": [
      {"ty": 0, "nm": "slot", "refId": "photo_a", "st": 0, "ip": 0, "op": 90},
      {"ty": 4, "nm": "bg", "st": 0, "ip": 0, "op": 120}
    ]},
    {"id": "scene20", "nm": "Scene 20", "layers": [
      {"ty": 0, "nm": "nested", "refId": "group_1", "st": 0, "ip": 0, "op": 10},
      {"ty": 4, "nm": "deco", "st": 0, "ip": 0, "op": 25},
      {"ty": 4, "nm": "short", "st": 0, "ip": 0, "op": 17},
      {"ty": 0, "nm": "gone", "refId": "missing_asset", "st": 0, "ip": 0, "op": 5}
    ]},
    {"id": "scene21", "nm": "Scene 21", "op": 60, "layers": [
      {"ty": 0, "nm": "loop", "refId": "scene21", "st": 0, "ip": 0, "op": 60},
      {"ty": 0, "nm": "slot", "refId": "photo_a", "st": 0, "ip": 0, "op": 60}
    ]},
    {"id": "group_1", "nm": "Group 1", "layers": [
      {"ty": 0, "nm": "slot", "refId": "photo_a", "st": 0, "ip": 0, "op": 10}
    ]},
    {"id": "photo_a", "nm": "photo_slot_a", "layers": [
      {"ty": 2, "nm": "img", "refId": "image_0", "st": 0, "ip": 0, "op": 90}
    ]},
    {"id": "image_0", "w": 800, "h": 600, "u": "images/", "p": "img_0.png", "e": 0},
    {"id": "unrelated", "nm": "Intro helper", "layers": [
      {"ty": 4, "nm": "x", "st": 0, "ip": 0, "op": 30}
    ]}
  ],
  "layers": []
}`

func parseTemplate(t *testing.T) *lottie.Document {
	t.Helper()
	doc, err := lottie.Parse([]byte(templateDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestResolveClosure(t *testing.T) {
	doc := parseTemplate(t)

	got := ResolveClosure(doc, "scene20")
	want := []string{"scene20", "group_1", "photo_a", "image_0", "missing_asset"}
	for _, id := range want {
		if !got[id] {
			t.Errorf("closure missing %q", id)
		}
	}
	if got["scene14"] || got["unrelated"] {
		t.Errorf("closure leaked unrelated assets: %v", got)
	}

	// Idempotence: re-running from every member changes nothing.
	for id := range got {
		for sub := range ResolveClosure(doc, id) {
			if !got[sub] {
				t.Errorf("closure not a fixed point: %q reachable from %q but absent", sub, id)
			}
		}
	}
}

func TestResolveClosureTerminatesOnCycles(t *testing.T) {
	doc := parseTemplate(t)
	got := ResolveClosure(doc, "scene21") // scene21 references itself
	if !got["scene21"] || !got["photo_a"] {
		t.Errorf("cyclic closure = %v", got)
	}
	if len(got) > len(doc.Assets) {
		t.Errorf("closure larger than asset table: %d", len(got))
	}
}

func TestScanOrdersByNumericSuffix(t *testing.T) {
	doc := parseTemplate(t)
	scenes := Scan(doc, Options{})
	if len(scenes) != 3 {
		t.Fatalf("Scan found %d scenes, want 3: %v", len(scenes), scenes)
	}
	for i, want := range []int{14, 20, 21} {
		if scenes[i].Index != want {
			t.Errorf("scene %d index = %d, want %d", i, scenes[i].Index, want)
		}
	}
}

func TestScanKeywordLocales(t *testing.T) {
	doc, err := lottie.Parse([]byte(`{"fr": 30, "assets": [
		{"id":"s2","nm":"Сцена 2","layers":[{"ty":4,"nm":"x","st":0,"ip":0,"op":10}]},
		{"id":"s1","nm":"Сцена 1","layers":[{"ty":4,"nm":"x","st":0,"ip":0,"op":10}]}
	], "layers": []}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	scenes := Scan(doc, Options{})
	if len(scenes) != 2 || scenes[0].AssetID != "s1" {
		t.Errorf("cyrillic scan = %v", scenes)
	}
}

func TestImplicitDuration(t *testing.T) {
	doc := parseTemplate(t)

	// scene20 has no explicit out-point; layers end at [10, 25, 17, 5].
	scenes := Scan(doc, Options{})
	var s20, s21 Descriptor
	for _, d := range scenes {
		switch d.AssetID {
		case "scene20":
			s20 = d
		case "scene21":
			s21 = d
		}
	}
	if s20.Frames != 25 {
		t.Errorf("implicit duration = %d, want 25", s20.Frames)
	}
	// scene21 declares op=60 explicitly.
	if s21.Frames != 60 {
		t.Errorf("explicit duration = %d, want 60", s21.Frames)
	}
}

func TestDescriptorSizeFallback(t *testing.T) {
	doc := parseTemplate(t)
	scenes := Scan(doc, Options{})
	for _, d := range scenes {
		if d.AssetID == "scene20" {
			// scene20 omits w/h; must inherit the document's.
			if d.Width != 1080 || d.Height != 1920 {
				t.Errorf("size fallback = %dx%d, want 1080x1920", d.Width, d.Height)
			}
		}
	}
}

func TestMatchFallbackChain(t *testing.T) {
	doc := parseTemplate(t)

	cases := []struct {
		query string
		want  string
	}{
		{"scene20", "scene20"},  // exact id
		{"SCENE20", "scene20"},  // case-insensitive id
		{"Scene 20", "scene20"}, // display-name fallback: keyword + numeric suffix
		{"сцена 14", "scene14"}, // locale keyword
	}
	for _, tc := range cases {
		got, err := Match(doc, tc.query, Options{})
		if err != nil {
			t.Errorf("Match(%q): %v", tc.query, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Match(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestMatchNotFound(t *testing.T) {
	doc := parseTemplate(t)
	_, err := Match(doc, "Scene 99", Options{})
	if !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("expected ErrSceneNotFound, got %v", err)
	}
	// A media asset id must not match as a scene.
	if _, err := Match(doc, "image_0", Options{}); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("media asset matched as scene: %v", err)
	}
}

func TestExtractAssetTableIsExactlyTheClosure(t *testing.T) {
	doc := parseTemplate(t)
	scenes := Scan(doc, Options{})
	var desc Descriptor
	for _, d := range scenes {
		if d.AssetID == "scene20" {
			desc = d
		}
	}

	ex, err := Extract(doc, desc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	closure := ResolveClosure(doc, "scene20")
	have := map[string]bool{}
	for _, a := range ex.Doc.Assets {
		have[a.ID] = true
		if !closure[a.ID] {
			t.Errorf("asset %q outside the closure in extracted scene", a.ID)
		}
	}
	for id := range closure {
		if doc.Asset(id) == nil {
			continue // dangling ids have no asset to carry over
		}
		if !have[id] {
			t.Errorf("closure member %q missing from extracted scene", id)
		}
	}

	if ex.Doc.OutPoint != 25 {
		t.Errorf("extracted out-point = %v, want 25", ex.Doc.OutPoint)
	}
	if len(ex.Doc.Layers) != len(doc.Asset("scene20").Layers) {
		t.Errorf("extracted root layers = %d, want %d", len(ex.Doc.Layers), len(doc.Asset("scene20").Layers))
	}
	if ex.Doc.FrameRate != doc.FrameRate {
		t.Errorf("frame rate = %v, want %v", ex.Doc.FrameRate, doc.FrameRate)
	}
}

func TestExtractLogsDanglingReferences(t *testing.T) {
	doc := parseTemplate(t)
	scenes := Scan(doc, Options{})
	var desc Descriptor
	for _, d := range scenes {
		if d.AssetID == "scene20" {
			desc = d // scene20 carries a layer referencing missing_asset
		}
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if _, err := Extract(doc, desc); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(buf.String(), "missing_asset") {
		t.Errorf("no dangling-reference warning logged, output: %q", buf.String())
	}
}

func TestExtractDoesNotShareStateWithSource(t *testing.T) {
	doc := parseTemplate(t)
	scenes := Scan(doc, Options{})
	ex, err := Extract(doc, scenes[0])
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	ex.Doc.Asset("image_0").Path = "mutated.png"
	if doc.Asset("image_0").Path != "img_0.png" {
		t.Error("extracted scene shares asset state with the source document")
	}
}
