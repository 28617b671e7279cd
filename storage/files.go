package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/basit/pitchvault-backend/models"
)

// SaveFile writes r to relative inside the pitch root through a temp file
// and an atomic rename. relative goes through Clean first.
func (r *Resolver) SaveFile(pitchID uuid.UUID, relative string, src io.Reader) (int64, error) {
	cleaned, err := Clean(relative)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", relative, err)
	}
	if cleaned == "" {
		return 0, fmt.Errorf("empty path: %w", ErrInvalidPath)
	}

	root := r.Root(pitchID)
	full := filepath.Join(root, cleaned)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	canonRoot, err := canonicalRoot(root)
	if err != nil {
		return 0, err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(full))
	if err != nil {
		return 0, fmt.Errorf("resolve directory: %w", err)
	}
	if !within(canonRoot, dir) {
		return 0, fmt.Errorf("%q escapes pitch root: %w", relative, ErrInvalidPath)
	}
	full = filepath.Join(dir, filepath.Base(full))

	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("write data: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return size, nil
}

// ListFiles returns the regular files of a pitch as slash-separated paths
// relative to its root, sorted. A missing root yields an empty list.
func (r *Resolver) ListFiles(pitchID uuid.UUID) ([]string, error) {
	root := r.Root(pitchID)
	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list pitch files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// DeleteAll removes the pitch root. Missing roots are not an error.
func (r *Resolver) DeleteAll(pitchID uuid.UUID) error {
	if err := os.RemoveAll(r.Root(pitchID)); err != nil {
		return fmt.Errorf("delete pitch files: %w", err)
	}
	return nil
}

// DetectFileType picks the renderable entry of a bundle: index.html, then
// the first html file, the first pdf, the first image, the first file.
// entry is empty when files is empty.
func DetectFileType(files []string) (models.FileType, string) {
	var html, pdf, image []string
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".html", ".htm":
			html = append(html, f)
		case ".pdf":
			pdf = append(pdf, f)
		case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
			image = append(image, f)
		}
	}

	for _, f := range html {
		if f == "index.html" {
			return models.FileTypeHTML, f
		}
	}
	switch {
	case len(html) > 0:
		return models.FileTypeHTML, html[0]
	case len(pdf) > 0:
		return models.FileTypePDF, pdf[0]
	case len(image) > 0:
		return models.FileTypeImage, image[0]
	case len(files) > 0:
		return models.FileTypeOther, files[0]
	}
	return models.FileTypeOther, ""
}
