package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	raw, err := ArchiveAssets([]Asset{
		{Filename: "output-0.png", MIME: "image/png", Data: []byte("png")},
		{Filename: "output-0.png", MIME: "image/png", Data: []byte("dup")},
		{Filename: "../notes.txt", MIME: "text/plain", Data: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := []struct {
		name   string
		body   string
		method uint16
	}{
		{"output-0.png", "png", zip.Store},
		{"output-0-1.png", "dup", zip.Store},
		{"notes.txt", "hello", zip.Deflate},
	}
	if len(zr.File) != len(want) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if f.Name != want[i].name || f.Method != want[i].method {
			t.Fatalf("entry %d = %s/%d, want %s/%d", i, f.Name, f.Method, want[i].name, want[i].method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != want[i].body {
			t.Fatalf("entry %s body = %q", f.Name, body)
		}
	}
}

func TestArchiveAssetsEmpty(t *testing.T) {
	raw, err := ArchiveAssets(nil)
	if err != nil {
		t.Fatalf("ArchiveAssets error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil || len(zr.File) != 0 {
		t.Fatalf("expected empty archive, got %v %v", zr, err)
	}
}
