package jobspec

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	spec := &Spec{
		Version:  "1",
		Document: "templates/memory_book.json",
		Output:   "out/book.mp4",
		Scenes: []Scene{
			{ID: "Scene 14"},
			{ID: "scene20", Width: 720, Height: 1280},
		},
		Photos:   map[string]string{"photo_slot_a": "https://cdn.example.com/u/1.jpg"},
		Texts:    map[string]string{"text_slot_a": "Лето 2026"},
		Audio:    "assets/track.mp3",
		Card:     &Card{Title: "Наша книга", URL: "https://example.com/p/42", Seconds: 2},
		Keywords: []string{"scene", "сцена"},
	}

	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := Write(spec, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, spec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, spec)
	}
}

func TestReadValidation(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body string
	}{
		{"missing document", "output: out.mp4\n"},
		{"scene without id", "document: a.json\nscenes:\n  - width: 720\n"},
		{"bad yaml", "document: [unclosed\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".yaml")
		if err := os.WriteFile(path, []byte(tc.body), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := Read(path); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
