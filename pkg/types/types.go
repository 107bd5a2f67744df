package types

import "time"

// LabelExt is the extension used for sidecar annotation files
const LabelExt = ".txt"

// Point is a coordinate normalized to the image size, in [0,1] range
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Annotation is one line of a sidecar label file
type Annotation struct {
	ClassID string  `json:"class_id"`
	Points  []Point `json:"points"`
}

// OperationKind tells undo how a sort has to be reversed
type OperationKind string

const (
	// OpMove relocates files into a rejection category
	OpMove OperationKind = "move"
	// OpSave relocates files into the accept folder
	OpSave OperationKind = "save"
)

// Operation records a single sort so it can be reversed.
// Label paths are empty when the image had no sidecar.
type Operation struct {
	Kind        OperationKind `json:"kind"`
	Destination string        `json:"destination"`
	SourceImage string        `json:"source_image"`
	DestImage   string        `json:"dest_image"`
	SourceLabel string        `json:"source_label,omitempty"`
	DestLabel   string        `json:"dest_label,omitempty"`
	At          time.Time     `json:"at"`
}

// HasLabel reports whether a sidecar moved with the image
func (o Operation) HasLabel() bool {
	return o.SourceLabel != "" && o.DestLabel != ""
}
