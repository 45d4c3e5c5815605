// Package storage holds preview handles for selected images: object storage
// for deployments, an in-memory store for local runs and tests.
package storage

import (
	"mime"
	"path"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

// ContentType returns the declared type, falling back to the file extension.
func ContentType(f domain.File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	// mimeType sederhana
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(filepath.Ext(f.Name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ObjectKey builds prefix/id/name with the name reduced to its base.
func ObjectKey(prefix, id, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return strings.TrimPrefix(path.Join(prefix, id, base), "/")
}
