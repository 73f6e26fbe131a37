package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store persists uploaded verification artifacts and returns a path the
// session can reference.
type Store interface {
	Save(ctx context.Context, sessionID, kind, filename string, r io.Reader) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// DiskStore writes artifacts under a root directory:
// <root>/<sessionID>/<kind>-<uuid><ext>.
type DiskStore struct {
	root     string
	maxBytes int64
}

func NewDiskStore(root string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &DiskStore{root: root, maxBytes: maxBytes}, nil
}

// ErrTooLarge is returned when an artifact exceeds the configured limit.
var ErrTooLarge = errors.New("artifact exceeds maximum upload size")

func (s *DiskStore) Save(ctx context.Context, sessionID, kind, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, sanitize(sessionID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrap(err, "create session dir")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	name := sanitize(kind) + "-" + uuid.NewString() + sanitize(ext)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", errors.Wrap(err, "create artifact file")
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", errors.Wrap(err, "write artifact")
	}
	return path, nil
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "." || s == ".." {
		return "_"
	}
	return s
}
