package container

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
)

// On-disk layout, little endian:
//
//	magic "SVC1" | version u16 | reserved u16 | body len u64 | crc32c u32 | ^crc32c u32 | body
//
// The body is a JSON object mapping keys to their encoded values.
const (
	formatMagic   = "SVC1"
	formatVersion = 1
	headerSize    = 24
)

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// encode serializes entries into the container file format.
func encode(entries map[string]json.RawMessage) ([]byte, error) {
	if entries == nil {
		entries = map[string]json.RawMessage{}
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	return frame(body), nil
}

// frame prepends the container header to body.
func frame(body []byte) []byte {
	crc := crc32.Checksum(body, crc32c)

	buf := make([]byte, headerSize, headerSize+len(body))
	copy(buf[0:4], formatMagic)
	binary.LittleEndian.PutUint16(buf[4:6], formatVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(body)))
	binary.LittleEndian.PutUint32(buf[16:20], crc)
	binary.LittleEndian.PutUint32(buf[20:24], ^crc)

	return append(buf, body...)
}

// decode validates data and returns its entries. Every validation failure
// wraps [ErrCorrupt].
func decode(data []byte) (map[string]json.RawMessage, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(data))
	}

	if string(data[0:4]) != formatMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}

	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	bodyLen := binary.LittleEndian.Uint64(data[8:16])
	if bodyLen != uint64(len(data)-headerSize) {
		return nil, fmt.Errorf("%w: body length %d, have %d", ErrCorrupt, bodyLen, len(data)-headerSize)
	}

	crc := binary.LittleEndian.Uint32(data[16:20])
	if ^crc != binary.LittleEndian.Uint32(data[20:24]) {
		return nil, fmt.Errorf("%w: checksum header mismatch", ErrCorrupt)
	}

	body := data[headerSize:]

	checksum := crc32.Checksum(body, crc32c)
	if checksum != crc {
		return nil, fmt.Errorf("%w: checksum mismatch (expected %08x got %08x)", ErrCorrupt, crc, checksum)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: body is not an object", ErrCorrupt)
	}

	var entries map[string]json.RawMessage

	err := json.Unmarshal(body, &entries)
	if err != nil {
		return nil, fmt.Errorf("%w: parse body: %w", ErrCorrupt, err)
	}

	return entries, nil
}
