package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"path"

	"github.com/google/uuid"
)

// CheckImage makes sure data is an image we can show in the browser. Only the
// header is decoded.
func CheckImage(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return format, nil
}

// Ingest copies an image into the folder and records its type in
// metadata.json. The file is written under a temporary name first so a
// half-written image never shows up in the listing.
func (f *ImageFolder) Ingest(name string, r io.Reader, kind string) error {
	name = path.Base(name)
	if !isImageFile(name) {
		return fmt.Errorf("'%s' does not have an image extension", name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("while reading '%s': %w", name, err)
	}
	if _, err := CheckImage(data); err != nil {
		return fmt.Errorf("while checking if '%s' is an image: %w", name, err)
	}

	tempFile := f.fs.Join(imagesDir, fmt.Sprintf(".%s.tmp", uuid.New()))
	out, err := f.fs.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		f.fs.Remove(tempFile)
		return err
	}
	if err := out.Close(); err != nil {
		f.fs.Remove(tempFile)
		return err
	}
	if err := f.fs.Rename(tempFile, f.fs.Join(imagesDir, name)); err != nil {
		f.fs.Remove(tempFile)
		return err
	}

	f.mu.Lock()
	metadata := make([]ImageMetadata, 0, len(f.metadata)+1)
	for _, entry := range f.metadata {
		if entry.Filename != name {
			metadata = append(metadata, entry)
		}
	}
	metadata = append(metadata, ImageMetadata{Filename: name, Type: kind})
	f.metadata = metadata
	f.mu.Unlock()

	if err := f.writeMetadata(metadata); err != nil {
		return err
	}
	log.Printf("folder: ingested %s as %s", name, kind)
	return f.Refresh()
}

func (f *ImageFolder) writeMetadata(metadata []ImageMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	out, err := f.fs.OpenFile(metadataFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("while opening metadata for writing: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("while writing metadata: %w", err)
	}
	return out.Close()
}
