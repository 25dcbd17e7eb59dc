package model

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata describes the exported classifier. It is read from a JSON file
// next to the .onnx model.
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 28, 28, 1},
		OutputShape: []int64{1, int64(len(K49Labels))},
		Classes:     append([]string(nil), K49Labels...),
		ImageSize:   28,
		InputName:   "input",
		OutputName:  "output",
	}
}

// LoadMetadata reads path, filling unset fields from DefaultMetadata. An
// empty path returns the defaults.
func LoadMetadata(path string) (Metadata, error) {
	meta := DefaultMetadata()
	if path == "" {
		return meta, nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var parsed Metadata
	if err := json.Unmarshal(metaFile, &parsed); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(parsed.InputShape) > 0 {
		meta.InputShape = parsed.InputShape
	}
	if len(parsed.OutputShape) > 0 {
		meta.OutputShape = parsed.OutputShape
	}
	if len(parsed.Classes) > 0 {
		meta.Classes = parsed.Classes
	}
	if parsed.ImageSize > 0 {
		meta.ImageSize = parsed.ImageSize
	}
	if parsed.InputName != "" {
		meta.InputName = parsed.InputName
	}
	if parsed.OutputName != "" {
		meta.OutputName = parsed.OutputName
	}
	meta.ApplySoftmax = parsed.ApplySoftmax

	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func (m Metadata) Validate() error {
	if m.InputSize() <= 0 {
		return fmt.Errorf("invalid input shape %v", m.InputShape)
	}
	if m.OutputSize() <= 0 {
		return fmt.Errorf("invalid output shape %v", m.OutputShape)
	}
	if len(m.Classes) != m.OutputSize() {
		return fmt.Errorf("metadata lists %d classes for output shape %v", len(m.Classes), m.OutputShape)
	}
	if n := int64(m.ImageSize); int64(m.InputSize()) != n*n {
		return fmt.Errorf("input shape %v does not hold a %dx%d image", m.InputShape, n, n)
	}
	return nil
}

func (m Metadata) InputSize() int  { return shapeSize(m.InputShape) }
func (m Metadata) OutputSize() int { return shapeSize(m.OutputShape) }

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		if dim <= 0 {
			return 0
		}
		size *= int(dim)
	}
	return size
}
