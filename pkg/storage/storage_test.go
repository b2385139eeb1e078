package storage

import (
	"io"
	"strings"
	"testing"
)

func TestGenerateName(t *testing.T) {
	tests := []struct {
		name     string
		original string
		wantExt  string
	}{
		{"keeps png", "cat.png", ".png"},
		{"lowercases", "Photo.JPG", ".jpg"},
		{"strips path", "../../etc/passwd.txt", ".txt"},
		{"windows path", `C:\Users\me\lamp.jpeg`, ".jpeg"},
		{"no extension", "README", ""},
		{"unsafe extension", "x.p$p", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateName(tt.original)
			if !strings.HasSuffix(got, tt.wantExt) {
				t.Fatalf("GenerateName(%q) = %q, want suffix %q", tt.original, got, tt.wantExt)
			}
			if !ValidName(got) {
				t.Fatalf("generated name %q must be valid", got)
			}
			if strings.ContainsAny(got, `/\`) {
				t.Fatalf("generated name %q contains a path separator", got)
			}
		})
	}
}

func TestGenerateName_Unique(t *testing.T) {
	a, b := GenerateName("a.png"), GenerateName("a.png")
	if a == b {
		t.Fatalf("expected distinct names, got %q twice", a)
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0b7e4f5a-1c2d-4e3f-8a9b-0c1d2e3f4a5b.png", true},
		{"0b7e4f5a-1c2d-4e3f-8a9b-0c1d2e3f4a5b", true},
		{"../0b7e4f5a-1c2d-4e3f-8a9b-0c1d2e3f4a5b.png", false},
		{"cat.png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.in); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	pngHead := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHead := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	tests := []struct {
		name string
		head []byte
		file string
		want string
	}{
		{"png bytes", pngHead, "a.png", "image/png"},
		{"png bytes, wrong extension", pngHead, "a.jpg", "image/png"},
		{"jpeg bytes, no extension", jpegHead, "photo", "image/jpeg"},
		{"text takes image extension", []byte("placeholder"), "a.JPG", "image/jpeg"},
		{"text without image extension", []byte("placeholder"), "notes.txt", "application/octet-stream"},
		{"html named as image", []byte("<!DOCTYPE html><html><script>alert(1)</script></html>"), "a.png", "application/octet-stream"},
		{"pdf named as image", []byte("%PDF-1.7\n"), "a.gif", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.head, tt.file); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestSniff_ReplaysHead(t *testing.T) {
	body := "\x89PNG\r\n\x1a\n" + strings.Repeat("x", 5000)
	ct, r, err := Sniff(Upload{OriginalName: "a.png", Body: strings.NewReader(body)})
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != body {
		t.Fatalf("body not replayed: got %d bytes, want %d", len(data), len(body))
	}
}

func TestStoredFile_PublicPath(t *testing.T) {
	f := StoredFile{Name: "abc.png"}
	if f.PublicPath() != "/images/abc.png" {
		t.Fatalf("unexpected public path %q", f.PublicPath())
	}
}
