package bytecode

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ChunkMagic prefixes serialized chunks: "EMBC" (Ember ByteCode).
var ChunkMagic = []byte{'E', 'M', 'B', 'C'}

// wireChunk is the on-disk form of a Chunk.
type wireChunk struct {
	Version   uint16    `cbor:"1,keyasint"`
	Code      []byte    `cbor:"2,keyasint"`
	Constants []float64 `cbor:"3,keyasint"`
	Lines     []int     `cbor:"4,keyasint"`
}

// Canonical mode gives deterministic encoding, so identical chunks
// serialize to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a Chunk: the magic bytes followed by canonical CBOR.
func MarshalChunk(c *Chunk) ([]byte, error) {
	payload, err := cborEncMode.Marshal(wireChunk{
		Version:   BytecodeVersion,
		Code:      c.Code,
		Constants: c.Constants,
		Lines:     c.Lines,
	})
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal chunk: %w", err)
	}
	buf := make([]byte, 0, len(ChunkMagic)+len(payload))
	buf = append(buf, ChunkMagic...)
	return append(buf, payload...), nil
}

// UnmarshalChunk deserializes and validates a Chunk produced by MarshalChunk.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	if !IsChunkData(data) {
		return nil, fmt.Errorf("bytecode: invalid chunk magic")
	}
	var w wireChunk
	if err := cbor.Unmarshal(data[len(ChunkMagic):], &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if w.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: version %d is newer than supported version %d", w.Version, BytecodeVersion)
	}
	c := &Chunk{
		Code:      w.Code,
		Constants: w.Constants,
		Lines:     w.Lines,
	}
	if c.Code == nil {
		c.Code = []byte{}
	}
	if c.Lines == nil {
		c.Lines = []int{}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: corrupt chunk: %w", err)
	}
	return c, nil
}

// IsChunkData reports whether data starts with the chunk magic.
func IsChunkData(data []byte) bool {
	return bytes.HasPrefix(data, ChunkMagic)
}
