package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Metadata values are plain map[string]any, so JSON is a stable, portable
// fit. If a different encoding is needed (protobuf, msgpack), implement
// Codec and pass it via WithCodec.
//
// The package default codec may change over time; persisted metadata
// blobs always record the codec name in their header so they can be
// validated and decoded correctly regardless of the current default.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used by the library.
//
// NOTE: This affects newly-created metadata blobs. Existing persisted files are
// self-describing (they store the codec name in their header) and are opened by
// selecting the appropriate codec by name.
var Default Codec = GoJSON{}
