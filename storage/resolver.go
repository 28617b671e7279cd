// Package storage maps pitches to their on-disk bundles.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPath means the request would leave the pitch root.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound means the path is safe but nothing servable exists there.
	ErrNotFound = errors.New("file not found")
)

// Resolver confines file access to <dataDir>/pitches/<pitchID>.
type Resolver struct {
	dataDir string
}

func NewResolver(dataDir string) *Resolver {
	return &Resolver{dataDir: dataDir}
}

// Root is the storage directory of a pitch. It may not exist yet.
func (r *Resolver) Root(pitchID uuid.UUID) string {
	return filepath.Join(r.dataDir, "pitches", pitchID.String())
}

// Clean normalizes a caller-supplied relative path. Leading separators are
// dropped so absolute input is treated as relative. It returns ErrInvalidPath
// when the path climbs above the root or carries a NUL byte. It never touches
// the filesystem.
func Clean(relative string) (string, error) {
	if strings.ContainsRune(relative, 0) {
		return "", ErrInvalidPath
	}
	p := strings.ReplaceAll(relative, `\`, "/")
	if vol := filepath.VolumeName(p); vol != "" {
		p = p[len(vol):]
	}
	p = strings.TrimLeft(p, "/")

	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", ErrInvalidPath
			}
		default:
			depth++
		}
	}

	cleaned := filepath.Clean(filepath.FromSlash(p))
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

// Resolve returns the canonical absolute path of relative inside the pitch
// root. Symlinks are resolved on both sides before the containment check, so
// a link pointing outside the root is rejected with ErrInvalidPath.
func (r *Resolver) Resolve(pitchID uuid.UUID, relative string) (string, error) {
	cleaned, err := Clean(relative)
	if err != nil {
		return "", fmt.Errorf("%q: %w", relative, err)
	}
	if cleaned == "" {
		return "", fmt.Errorf("empty path: %w", ErrNotFound)
	}

	root, err := canonicalRoot(r.Root(pitchID))
	if err != nil {
		return "", err
	}

	canonical, err := filepath.EvalSymlinks(filepath.Join(root, cleaned))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%q: %w", relative, ErrNotFound)
		}
		return "", fmt.Errorf("resolve %q: %w", relative, err)
	}
	canonical, err = filepath.Abs(canonical)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", relative, err)
	}

	if !within(root, canonical) {
		return "", fmt.Errorf("%q escapes pitch root: %w", relative, ErrInvalidPath)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("%q: %w", relative, ErrNotFound)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%q is not a file: %w", relative, ErrNotFound)
	}
	return canonical, nil
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("pitch root: %w", ErrNotFound)
		}
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return resolved, nil
}

// within reports whether target equals root or lies below it.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
