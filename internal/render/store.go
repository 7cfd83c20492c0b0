// Package render encodes rasterized pages and stores them under their
// content hash, so identical renders share one file across builds.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/codec"
)

// Variant is one encoding of a rendered page.
type Variant string

const (
	Lossless Variant = "lossless"
	Lossy    Variant = "lossy"
)

// Ext returns the file extension of the variant.
func (v Variant) Ext() string {
	if v == Lossy {
		return "jpg"
	}
	return "png"
}

// Store writes encoded pages into a directory.
type Store struct {
	dir         string
	jpegQuality int
	png         png.Encoder
}

func NewStore(dir string, jpegQuality int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating rendered pages directory: %w", err)
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = jpeg.DefaultQuality
	}
	return &Store{
		dir:         dir,
		jpegQuality: jpegQuality,
		png:         png.Encoder{CompressionLevel: png.BestCompression},
	}, nil
}

// Dir returns the directory holding the encoded pages.
func (s *Store) Dir() string { return s.dir }

// Put encodes img as variant and stores it. It returns the content id and
// whether a new file was written.
func (s *Store) Put(img image.Image, variant Variant) (string, bool, error) {
	var buf bytes.Buffer
	var err error
	switch variant {
	case Lossless:
		err = s.png.Encode(&buf, img)
	case Lossy:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.jpegQuality})
	default:
		return "", false, fmt.Errorf("unknown render variant %q", variant)
	}
	if err != nil {
		return "", false, fmt.Errorf("encoding %s page: %w", variant, err)
	}

	id := ContentID(buf.Bytes())
	path := s.Path(id, variant)
	if _, err := os.Stat(path); err == nil {
		return id, false, nil
	}
	err = codec.WriteFileAtomic(path, func(w io.Writer) error {
		_, werr := w.Write(buf.Bytes())
		return werr
	})
	if err != nil {
		return "", false, fmt.Errorf("writing page %s: %w", id, err)
	}
	return id, true, nil
}

// Path returns where the file of id is stored.
func (s *Store) Path(id string, variant Variant) string {
	return filepath.Join(s.dir, id+"."+variant.Ext())
}

// ContentID hashes data with BLAKE3 and encodes the digest as unpadded
// URL-safe base64.
func ContentID(data []byte) string {
	sum := blake3.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
