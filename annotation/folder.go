package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
)

const (
	imagesDir    = "images"
	metadataFile = "metadata.json"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidDirection = errors.New("invalid direction")
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}

// ImageMetadata is one entry of metadata.json
type ImageMetadata struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// ImageFolder is a reviewer's assignment: an images/ directory and a
// metadata.json describing how each image was produced.
type ImageFolder struct {
	fs   billy.Filesystem
	Root string

	mu       sync.RWMutex
	images   []string
	metadata []ImageMetadata
}

// OpenImageFolder loads the folder at dir from disk
func OpenImageFolder(dir string) (*ImageFolder, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("user folder does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("user folder is not a directory: %s", dir)
	}
	folder, err := LoadImageFolder(osfs.New(dir))
	if err != nil {
		return nil, err
	}
	folder.Root = dir
	return folder, nil
}

// LoadImageFolder loads a folder from any billy filesystem
func LoadImageFolder(fs billy.Filesystem) (*ImageFolder, error) {
	folder := &ImageFolder{fs: fs, Root: fs.Root()}
	if err := folder.Refresh(); err != nil {
		return nil, err
	}
	return folder, nil
}

func isImageFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Refresh lists images/ and reads metadata.json again
func (f *ImageFolder) Refresh() error {
	if _, err := f.fs.Stat(imagesDir); err != nil {
		return fmt.Errorf("images directory not found in: %s", f.Root)
	}
	entries, err := f.fs.ReadDir(imagesDir)
	if err != nil {
		return fmt.Errorf("while listing images: %w", err)
	}
	images := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		images = append(images, entry.Name())
	}
	sort.Strings(images)

	metadata, err := f.readMetadata()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.images = images
	f.metadata = metadata
	f.mu.Unlock()
	log.Printf("folder: loaded %d images from %s", len(images), f.Root)
	return nil
}

func (f *ImageFolder) readMetadata() ([]ImageMetadata, error) {
	file, err := f.fs.Open(metadataFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("metadata file not found in: %s", f.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("while opening metadata: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("while reading metadata: %w", err)
	}
	var ret []ImageMetadata
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("error loading metadata: %w", err)
	}
	return ret, nil
}

// Images returns the image filenames, sorted
func (f *ImageFolder) Images() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ret := make([]string, len(f.images))
	copy(ret, f.images)
	return ret
}

func (f *ImageFolder) indexOf(name string) int {
	for i, image := range f.images {
		if image == name {
			return i
		}
	}
	return -1
}

func (f *ImageFolder) Contains(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.indexOf(name) >= 0
}

// Metadata returns the metadata entry for name, or a zero value
func (f *ImageFolder) Metadata(name string) ImageMetadata {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, entry := range f.metadata {
		if entry.Filename == name {
			return entry
		}
	}
	return ImageMetadata{}
}

// DisplayName decorates name with how the image was produced
func (f *ImageFolder) DisplayName(name string) string {
	switch f.Metadata(name).Type {
	case "edited":
		return name + " (EDITED)"
	case "fake":
		return name + " (AI-GENERATED)"
	default:
		return name
	}
}

// Neighbor returns the image after ("next") or before ("previous") name,
// wrapping around at both ends.
func (f *ImageFolder) Neighbor(name, direction string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	current := f.indexOf(name)
	if current < 0 {
		return "", ErrImageNotFound
	}
	total := len(f.images)
	switch direction {
	case "next":
		return f.images[(current+1)%total], nil
	case "previous":
		return f.images[(current-1+total)%total], nil
	default:
		return "", ErrInvalidDirection
	}
}

// OpenImage opens an image of the folder for reading
func (f *ImageFolder) OpenImage(name string) (billy.File, os.FileInfo, error) {
	if !f.Contains(name) {
		return nil, nil, ErrImageNotFound
	}
	path := f.fs.Join(imagesDir, name)
	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, info, nil
}

// CreateImageFolder lays out an empty folder: images/ and a metadata.json
// with no entries. Existing metadata is left alone.
func CreateImageFolder(fs billy.Filesystem) error {
	if err := fs.MkdirAll(imagesDir, 0755); err != nil {
		return fmt.Errorf("while creating images directory: %w", err)
	}
	if _, err := fs.Stat(metadataFile); err == nil {
		return nil
	}
	folder := &ImageFolder{fs: fs, Root: fs.Root()}
	return folder.writeMetadata([]ImageMetadata{})
}
