package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for every timestamp in the
// persisted documents.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Timestamp formats t the way the persisted documents expect it
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Coordinates is a pixel-space rectangle as [x1, y1, x2, y2]. Corner order is
// whatever the client sent.
type Coordinates [4]float64

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("while decoding coordinates: %w", err)
	}
	if len(values) != len(c) {
		return fmt.Errorf("coordinates must have %d values, got %d", len(c), len(values))
	}
	copy(c[:], values)
	return nil
}

// BoundingBox is the canonical box: a rectangle plus its referring expression
type BoundingBox struct {
	Coordinates Coordinates `json:"coordinates"`
	RefExp      string      `json:"ref_exp"`
}

// Box is a stored bounding box. Older documents store bare coordinate arrays;
// those keep their shape until a text update targets them.
type Box struct {
	Coordinates Coordinates
	RefExp      string
	Bare        bool
}

// BoundingBox returns the canonical view of the box regardless of how it is
// stored.
func (b Box) BoundingBox() BoundingBox {
	return BoundingBox{Coordinates: b.Coordinates, RefExp: b.RefExp}
}

func (b Box) MarshalJSON() ([]byte, error) {
	if b.Bare {
		return json.Marshal(b.Coordinates)
	}
	return json.Marshal(b.BoundingBox())
}

func (b *Box) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var coords Coordinates
		if err := json.Unmarshal(trimmed, &coords); err != nil {
			return err
		}
		*b = Box{Coordinates: coords, Bare: true}
		return nil
	}
	var canonical struct {
		Coordinates json.RawMessage `json:"coordinates"`
		RefExp      string          `json:"ref_exp"`
	}
	if err := json.Unmarshal(trimmed, &canonical); err != nil {
		return fmt.Errorf("while decoding bounding box: %w", err)
	}
	raw := bytes.TrimSpace(canonical.Coordinates)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("bounding box has no coordinates")
	}
	// Some older documents wrap a whole box object under "coordinates"
	if raw[0] == '{' {
		var inner Box
		if err := inner.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("while decoding nested bounding box: %w", err)
		}
		*b = Box{Coordinates: inner.Coordinates, RefExp: canonical.RefExp}
		if b.RefExp == "" {
			b.RefExp = inner.RefExp
		}
		return nil
	}
	var coords Coordinates
	if err := json.Unmarshal(raw, &coords); err != nil {
		return fmt.Errorf("while decoding bounding box: %w", err)
	}
	*b = Box{Coordinates: coords, RefExp: canonical.RefExp}
	return nil
}

// NormalizeForInsert turns an insert payload into the box that gets appended.
// Canonical payloads are kept verbatim, bare coordinates get an empty
// referring expression.
func NormalizeForInsert(payload BoxPayload) (Box, bool) {
	switch p := payload.(type) {
	case InsertBox:
		return Box{Coordinates: p.Coordinates, RefExp: ""}, true
	case InsertCanonicalBox:
		return Box{Coordinates: p.Box.Coordinates, RefExp: p.Box.RefExp}, true
	default:
		return Box{}, false
	}
}

// ApplyTextUpdate replaces the referring expression of existing, upgrading a
// bare box to the canonical shape. Coordinates are never touched.
func ApplyTextUpdate(existing Box, text string) Box {
	return Box{Coordinates: existing.Coordinates, RefExp: text}
}

// FlagAnnotation holds the boxes drawn for one flag on one image. A box is
// addressed by its position in Boxes.
type FlagAnnotation struct {
	Boxes     []Box  `json:"bboxes"`
	Timestamp string `json:"timestamp"`
}

// ImageAnnotation holds every flag a user raised on an image. A flag with no
// boxes is never kept.
type ImageAnnotation struct {
	Flags       map[string]*FlagAnnotation `json:"flags"`
	LastUpdated string                     `json:"last_updated"`
}

// NewImageAnnotation returns the empty annotation handed out for images that
// were never annotated.
func NewImageAnnotation() ImageAnnotation {
	return ImageAnnotation{Flags: map[string]*FlagAnnotation{}, LastUpdated: ""}
}

// Clone returns a deep copy
func (a ImageAnnotation) Clone() ImageAnnotation {
	ret := ImageAnnotation{
		Flags:       make(map[string]*FlagAnnotation, len(a.Flags)),
		LastUpdated: a.LastUpdated,
	}
	for name, flag := range a.Flags {
		if flag == nil {
			continue
		}
		boxes := make([]Box, len(flag.Boxes))
		copy(boxes, flag.Boxes)
		ret.Flags[name] = &FlagAnnotation{Boxes: boxes, Timestamp: flag.Timestamp}
	}
	return ret
}

// IsEmpty reports whether the image has no flags at all
func (a ImageAnnotation) IsEmpty() bool {
	return len(a.Flags) == 0
}

// UserAnnotations maps an image filename to its annotation
type UserAnnotations map[string]*ImageAnnotation

// AnnotationSet is the root of durable annotation state, keyed by user email.
type AnnotationSet map[string]UserAnnotations

// DropEmptyFlags removes flags that hold no boxes and returns how many were
// removed. Older writers could leave such entries behind.
func (s AnnotationSet) DropEmptyFlags() int {
	dropped := 0
	for _, images := range s {
		for _, image := range images {
			if image == nil {
				continue
			}
			for name, flag := range image.Flags {
				if flag == nil || len(flag.Boxes) == 0 {
					delete(image.Flags, name)
					dropped++
				}
			}
		}
	}
	return dropped
}

// Clone returns a deep copy
func (s AnnotationSet) Clone() AnnotationSet {
	ret := make(AnnotationSet, len(s))
	for email, images := range s {
		copied := make(UserAnnotations, len(images))
		for name, image := range images {
			if image == nil {
				continue
			}
			c := image.Clone()
			copied[name] = &c
		}
		ret[email] = copied
	}
	return ret
}
