package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"meshinv/internal/domain"
)

// Importer reads an inventory snapshot in some format
type Importer interface {
	Parse(r io.Reader) (*domain.Snapshot, error)
	Format() string
}

// Exporter writes an inventory snapshot in some format
type Exporter interface {
	Export(snapshot *domain.Snapshot, w io.Writer) error
	Format() string
}

// Codec both reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for a format name
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unsupported snapshot format %q", format)
}

// ForPath picks a codec from a file extension, defaulting to JSON
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return NewJSONCodec(), nil
	}
	return ForFormat(ext)
}
