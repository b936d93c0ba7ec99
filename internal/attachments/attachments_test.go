package attachments

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := NewStore(t.TempDir(), 1024)
	if err != nil {
		t.Fatal(err)
	}

	ref, n, err := s.Save(strings.NewReader("receipt body"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != int64(len("receipt body")) {
		t.Errorf("size = %d", n)
	}
	if !strings.HasPrefix(ref, "att_") || !ValidRef(ref) {
		t.Errorf("unexpected ref %q", ref)
	}

	rc, err := s.Open(ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "receipt body" {
		t.Errorf("body = %q", body)
	}

	other, _, err := s.Save(strings.NewReader("receipt body"))
	if err != nil {
		t.Fatal(err)
	}
	if other == ref {
		t.Error("references must not depend on content")
	}
}

func TestSaveTooLarge(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Save(bytes.NewReader([]byte("12345"))); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("oversized upload left %d files behind", len(entries))
	}
}

func TestRefValidation(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{"", "att_", "../etc/passwd", "att_../../x", "file_0b9f7e3c-3a6e-4d5b-9f55-0d1a2b3c4d5e"} {
		if _, err := s.Open(ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Open(%q) = %v, want ErrInvalidRef", ref, err)
		}
	}

	missing := "att_0b9f7e3c-3a6e-4d5b-9f55-0d1a2b3c4d5e"
	if _, err := s.Open(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Remove(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	ref, _, err := s.Save(strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Open(ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}
