// Package attachments keeps uploaded receipts on disk.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const refPrefix = "att_"

var (
	ErrTooLarge   = errors.New("attachment exceeds size limit")
	ErrInvalidRef = errors.New("invalid attachment reference")
	ErrNotFound   = errors.New("attachment not found")
)

// Store writes each upload to its own file named by its reference.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save copies r to a new file and returns its reference and size.
// Nothing is kept when r exceeds the size limit.
func (s *Store) Save(r io.Reader) (string, int64, error) {
	ref := refPrefix + uuid.NewString()
	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create attachment: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write attachment: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", 0, ErrTooLarge
	}
	if err := os.Rename(tmp, s.path(ref)); err != nil {
		return "", 0, fmt.Errorf("store attachment: %w", err)
	}
	return ref, n, nil
}

func (s *Store) Open(ref string) (io.ReadCloser, error) {
	if !ValidRef(ref) {
		return nil, ErrInvalidRef
	}
	f, err := os.Open(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return f, err
}

func (s *Store) Remove(ref string) error {
	if !ValidRef(ref) {
		return ErrInvalidRef
	}
	err := os.Remove(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return err
}

// ValidRef reports whether ref has the att_<uuid> shape.
func ValidRef(ref string) bool {
	id, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil && !strings.ContainsAny(id, `/\`)
}

func (s *Store) path(ref string) string {
	return filepath.Join(s.dir, ref)
}
