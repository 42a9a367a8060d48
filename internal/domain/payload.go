package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BoxPayload is what a client sends to save_annotation. The shape of the raw
// JSON is inspected once by ParseBoxPayload; the store only switches on the
// concrete type.
type BoxPayload interface {
	isBoxPayload()
}

// InsertBox appends a box given as bare coordinates
type InsertBox struct {
	Coordinates Coordinates
}

// InsertCanonicalBox appends a box that already carries its referring
// expression
type InsertCanonicalBox struct {
	Box BoundingBox
}

// UpdateTextBox sets the referring expression of the box at Index
type UpdateTextBox struct {
	Index int
	Text  string
}

func (InsertBox) isBoxPayload()          {}
func (InsertCanonicalBox) isBoxPayload() {}
func (UpdateTextBox) isBoxPayload()      {}

// ParseBoxPayload decides which kind of payload raw is:
//
//   - a JSON array is a bare insert
//   - an object with "referringExpression" updates the box at "bboxIndex"
//     (a missing index is -1, which never resolves)
//   - an object with "coordinates" is a canonical insert, "ref_exp" defaulting
//     to the empty string
func ParseBoxPayload(raw json.RawMessage) (BoxPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewError(ErrMissingField, "Missing bounding box")
	}
	switch trimmed[0] {
	case '[':
		var coords Coordinates
		if err := json.Unmarshal(trimmed, &coords); err != nil {
			return nil, NewError(ErrMissingField, fmt.Sprintf("Invalid bounding box: %s", err))
		}
		return InsertBox{Coordinates: coords}, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, NewError(ErrMissingField, fmt.Sprintf("Invalid bounding box: %s", err))
		}
		if text, ok := fields["referringExpression"]; ok {
			update := UpdateTextBox{Index: -1}
			if err := json.Unmarshal(text, &update.Text); err != nil {
				return nil, NewError(ErrMissingField, "referringExpression must be a string")
			}
			if index, ok := fields["bboxIndex"]; ok {
				if err := json.Unmarshal(index, &update.Index); err != nil {
					return nil, NewError(ErrMissingField, "bboxIndex must be an integer")
				}
			}
			return update, nil
		}
		if _, ok := fields["coordinates"]; ok {
			var box BoundingBox
			if err := json.Unmarshal(trimmed, &box); err != nil {
				return nil, NewError(ErrMissingField, fmt.Sprintf("Invalid bounding box: %s", err))
			}
			return InsertCanonicalBox{Box: box}, nil
		}
	}
	return nil, NewError(ErrMissingField, "Bounding box must be a coordinate list or an object with coordinates")
}
