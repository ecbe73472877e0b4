// Package persistence implements the namespace metadata blob format:
// {base}.meta.json on disk, self-describing (codec name in its header)
// and zstd-compressed, written atomically via temp-file-then-rename. The
// vector-index blob living alongside it at {base}.idx is the adapter's
// own concern; its format is whatever that adapter defines.
package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/nsvector/hybridengine/codec"
)

// magic identifies a hybridengine metadata blob; formatVersion lets a
// future incompatible header change be detected rather than misparsed.
var magic = [4]byte{'H', 'E', 'N', 'G'}

const formatVersion = 1

// ErrCorrupt is wrapped into every error LoadMetadata returns because of
// a malformed header, unknown codec name, or payload that fails to
// decompress/decode.
var ErrCorrupt = errors.New("persistence: corrupt metadata blob")

// RevEntry is one namespace document as persisted: public id, vector,
// and metadata.
type RevEntry struct {
	PublicID string         `json:"publicId"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// RevMapEntry renders as a [slot, entry] JSON tuple rather than an
// object keyed by slot, since JSON object keys must be strings and
// slot is a uint32.
type RevMapEntry struct {
	Slot  uint32
	Entry RevEntry
}

func (e RevMapEntry) MarshalJSON() ([]byte, error) {
	return marshalTuple(e.Slot, e.Entry)
}

func (e *RevMapEntry) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Slot, &e.Entry)
}

// FullTextEntry renders as a [term, slots] JSON tuple.
type FullTextEntry struct {
	Term  string
	Slots []uint32
}

func (e FullTextEntry) MarshalJSON() ([]byte, error) {
	return marshalTuple(e.Term, e.Slots)
}

func (e *FullTextEntry) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Term, &e.Slots)
}

// DocLengthEntry renders as a [slot, length] JSON tuple.
type DocLengthEntry struct {
	Slot   uint32
	Length int
}

func (e DocLengthEntry) MarshalJSON() ([]byte, error) {
	return marshalTuple(e.Slot, e.Length)
}

func (e *DocLengthEntry) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Slot, &e.Length)
}

func marshalTuple(a, b any) ([]byte, error) {
	return json.Marshal([2]any{a, b})
}

func unmarshalTuple(data []byte, a, b any) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], a); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], b)
}

// MetadataBlob is the full persisted state of one namespace excluding
// the vector index itself.
type MetadataBlob struct {
	Dim            int               `json:"dim"`
	MaxElements    int               `json:"maxElements"`
	IDMap          map[string]uint32 `json:"idMap"`
	RevMap         []RevMapEntry     `json:"revMap"`
	NextInternalID uint32            `json:"nextInternalId"`
	FreeList       []uint32          `json:"freeList"`
	FullTextIndex  []FullTextEntry   `json:"fullTextIndex"`
	IndexedFields  []string          `json:"indexedFields"`
	DocLengths     []DocLengthEntry  `json:"docLengths"`
	AvgDocLength   float64           `json:"avgDocLength"`
	TotalDocs      int               `json:"totalDocs"`
}

// RevEntries, Postings, and DocLengthMap decompose a loaded MetadataBlob
// back into the plain maps a namespace builds its state from.

func (m MetadataBlob) RevEntries() map[uint32]RevEntry {
	out := make(map[uint32]RevEntry, len(m.RevMap))
	for _, e := range m.RevMap {
		out[e.Slot] = e.Entry
	}
	return out
}

func (m MetadataBlob) Postings() map[string][]uint32 {
	out := make(map[string][]uint32, len(m.FullTextIndex))
	for _, e := range m.FullTextIndex {
		out[e.Term] = e.Slots
	}
	return out
}

func (m MetadataBlob) DocLengthMap() map[uint32]int {
	out := make(map[uint32]int, len(m.DocLengths))
	for _, e := range m.DocLengths {
		out[e.Slot] = e.Length
	}
	return out
}

// SaveMetadata codec-encodes blob, zstd-compresses it, and writes it
// atomically to path under a small self-describing header recording the
// codec name and format version.
func SaveMetadata(path string, blob MetadataBlob, c codec.Codec) error {
	if c == nil {
		c = codec.Default
	}

	payload, err := c.Marshal(blob)
	if err != nil {
		return fmt.Errorf("persistence: marshal metadata: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("persistence: zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(payload, nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("persistence: zstd close: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)
	name := c.Name()
	if len(name) > 255 {
		return fmt.Errorf("persistence: codec name too long: %q", name)
	}
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(compressed)

	return atomicWriteFile(path, buf.Bytes())
}

// LoadMetadata reads path, validates its header, and decodes it with the
// codec named in that header (codec.ByName), regardless of which codec
// is the current process default — this is what lets an old snapshot
// survive a future default-codec change.
func LoadMetadata(path string) (MetadataBlob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MetadataBlob{}, fmt.Errorf("persistence: read metadata: %w", err)
	}

	if len(raw) < 5 || [4]byte(raw[:4]) != magic {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: bad header", ErrCorrupt)
	}
	if raw[4] != formatVersion {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: unsupported format version %d", ErrCorrupt, raw[4])
	}
	rest := raw[5:]
	if len(rest) < 1 {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: truncated header", ErrCorrupt)
	}
	nameLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < nameLen {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: truncated codec name", ErrCorrupt)
	}
	name := string(rest[:nameLen])
	compressed := rest[nameLen:]

	c, ok := codec.ByName(name)
	if !ok {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: unknown codec %q", ErrCorrupt, name)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return MetadataBlob{}, fmt.Errorf("persistence: zstd reader: %w", err)
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: %v", ErrCorrupt, err)
	}

	var blob MetadataBlob
	if err := c.Unmarshal(payload, &blob); err != nil {
		return MetadataBlob{}, fmt.Errorf("persistence: %w: %v", ErrCorrupt, err)
	}
	return blob, nil
}

// atomicWriteFile writes data to a temp file beside path and renames it
// into place: write, fsync, then rename, so a reader never observes a
// partially written file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
