package upload

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// TextMediaType is the media type of every normalized text payload.
const TextMediaType = "text/plain; charset=utf-8"

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".tsv": true,
	".json": true, ".log": true, ".xml": true, ".html": true, ".htm": true,
	".yaml": true, ".yml": true, ".ini": true, ".rst": true,
}

var textMediaTypes = map[string]bool{
	"application/json":     true,
	"application/xml":      true,
	"application/x-yaml":   true,
	"application/yaml":     true,
	"application/x-ndjson": true,
}

// File is a document selected for upload.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Prepared is a file ready for transfer.
type Prepared struct {
	Name      string
	MediaType string
	Data      []byte
	Encoding  Encoding
}

// ReadFile loads path from disk. The media type is left empty so that
// IsText falls back to the extension and content sniffing.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// IsText reports whether a file should go through the encoding normalizer.
// The extension or a declared media type decides; with neither, the leading
// bytes are sniffed.
func IsText(name, mediaType string, head []byte) bool {
	if textExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	if mediaType != "" {
		mt, _, err := mime.ParseMediaType(mediaType)
		if err != nil {
			return false
		}
		return strings.HasPrefix(mt, "text/") || textMediaTypes[mt]
	}
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Prepare normalizes textual files and passes everything else through.
func Prepare(f File) (Prepared, error) {
	if !IsText(f.Name, f.MediaType, f.Data) {
		mt := f.MediaType
		if mt == "" {
			mt = mimetype.Detect(f.Data).String()
		}
		return Prepared{Name: f.Name, MediaType: mt, Data: f.Data, Encoding: EncodingBinary}, nil
	}

	res, err := Normalize(f.Data)
	if err != nil {
		return Prepared{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	return Prepared{
		Name:      f.Name,
		MediaType: TextMediaType,
		Data:      res.Data,
		Encoding:  res.Encoding,
	}, nil
}
