package sessionfile

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Both formats are an 8-byte magic, a 4-byte little-endian uncompressed
// size and a raw lz4 block.
var (
	flowMagic = []byte("flowLz4\x00")
	mozMagic  = []byte("mozLz40\x00")
)

const headerSize = 12

func compressBlock(magic, data []byte) ([]byte, error) {
	buf := make([]byte, headerSize+lz4.CompressBlockBound(len(data)))
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[8:headerSize], uint32(len(data)))
	n, err := lz4.CompressBlock(data, buf[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf[:headerSize+n], nil
}

func decompressBlock(magic, data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:8], magic) {
		return nil, fmt.Errorf("invalid header magic")
	}
	size := binary.LittleEndian.Uint32(data[8:headerSize])
	if size == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return dst[:n], nil
}
