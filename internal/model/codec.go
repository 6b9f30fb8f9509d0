package model

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Wire frame for entries stored in the tiers. The key and partition are not
// part of the frame; every tier already addresses by (partition, key).
//
//	magic      uint32
//	version    uint8
//	flags      uint8   bit0: compressed
//	tierMask   uint8
//	createdAt  int64
//	expiresAt  int64
//	rawSize    int64
//	depCount   uint16
//	deps       depCount x (uint16 len + bytes)
//	payloadLen uint32
//	payload    payloadLen bytes
//	crc        uint32  crc32 (IEEE) of everything before it
const (
	frameMagic   uint32 = 0x74633031 // "tc01"
	frameVersion uint8  = 1

	flagCompressed uint8 = 1 << 0

	headerLen  = 4 + 1 + 1 + 1 + 8 + 8 + 8 + 2
	trailerLen = 4
)

// Encode serializes the entry into the tier wire frame.
func Encode(e *Entry) []byte {
	size := headerLen + trailerLen + 4 + len(e.Payload)
	for _, dep := range e.Dependencies {
		size += 2 + len(dep)
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, frameMagic)
	buf = append(buf, frameVersion)

	var flags uint8
	if e.Compressed {
		flags |= flagCompressed
	}
	buf = append(buf, flags, uint8(e.TierMask))

	buf = binary.BigEndian.AppendUint64(buf, uint64(e.CreatedAt))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.ExpiresAt))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.RawSize))

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Dependencies)))
	for _, dep := range e.Dependencies {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(dep)))
		buf = append(buf, dep...)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Payload)))
	buf = append(buf, e.Payload...)

	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

// Decode parses a tier wire frame. Partition and key are filled from the
// lookup context since they are not encoded.
func Decode(partition, key string, data []byte) (*Entry, error) {
	if len(data) < headerLen+trailerLen+4 {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrCorruptEntry, len(data))
	}

	body, trailer := data[:len(data)-trailerLen], data[len(data)-trailerLen:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptEntry)
	}

	if binary.BigEndian.Uint32(body[0:4]) != frameMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptEntry)
	}
	if body[4] != frameVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptEntry, body[4])
	}

	e := &Entry{
		Key:        key,
		Partition:  partition,
		Compressed: body[5]&flagCompressed != 0,
		TierMask:   TierMask(body[6]),
		CreatedAt:  int64(binary.BigEndian.Uint64(body[7:15])),
		ExpiresAt:  int64(binary.BigEndian.Uint64(body[15:23])),
		RawSize:    int64(binary.BigEndian.Uint64(body[23:31])),
	}

	off := headerLen
	depCount := int(binary.BigEndian.Uint16(body[31:33]))
	if depCount > 0 {
		e.Dependencies = make([]string, 0, depCount)
	}
	for i := 0; i < depCount; i++ {
		if off+2 > len(body) {
			return nil, fmt.Errorf("%w: truncated dependency list", ErrCorruptEntry)
		}
		n := int(binary.BigEndian.Uint16(body[off : off+2]))
		off += 2
		if off+n > len(body) {
			return nil, fmt.Errorf("%w: truncated dependency", ErrCorruptEntry)
		}
		e.Dependencies = append(e.Dependencies, string(body[off:off+n]))
		off += n
	}

	if off+4 > len(body) {
		return nil, fmt.Errorf("%w: truncated payload length", ErrCorruptEntry)
	}
	payloadLen := int(binary.BigEndian.Uint32(body[off : off+4]))
	off += 4
	if off+payloadLen != len(body) {
		return nil, fmt.Errorf("%w: payload length mismatch", ErrCorruptEntry)
	}
	e.Payload = body[off:]

	return e, nil
}
