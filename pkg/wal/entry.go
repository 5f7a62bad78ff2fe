package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// OpType represents the kind of journaled edit
type OpType byte

const (
	// OpToggle sets one paragraph's join flag
	OpToggle OpType = 1

	// OpRebuild rebuilds every run of the document
	OpRebuild OpType = 2

	// OpAlign aligns translation state by joined text
	OpAlign OpType = 3

	// OpCheckpoint marks that the document was saved with every earlier edit applied
	OpCheckpoint OpType = 4
)

const (
	// EntryHeaderSize is the fixed size of the entry header
	// Layout: LSN(8) + OpType(1) + Reserved(7) + KeyLen(4) + ValLen(4) + Timestamp(8)
	EntryHeaderSize = 32
)

// Entry represents a single journal entry
type Entry struct {
	LSN       uint64    // Log Sequence Number (monotonically increasing)
	OpType    OpType    // Operation type
	Key       []byte    // paragraph key for OpToggle
	Value     []byte    // edit parameters
	Timestamp time.Time // Entry timestamp
}

// Encode serializes the entry to bytes with CRC32 checksum
// Format: [Header(32)] [Key] [Value] [CRC32(4)]
func (e *Entry) Encode() []byte {
	keyLen := len(e.Key)
	valLen := len(e.Value)
	buf := make([]byte, EntryHeaderSize+keyLen+valLen+4)

	binary.LittleEndian.PutUint64(buf[0:8], e.LSN)
	buf[8] = byte(e.OpType)
	// bytes 9-15 are reserved
	binary.LittleEndian.PutUint32(buf[16:20], uint32(keyLen))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(valLen))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(e.Timestamp.UnixNano()))

	offset := EntryHeaderSize
	copy(buf[offset:], e.Key)
	offset += keyLen
	copy(buf[offset:], e.Value)
	offset += valLen

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)
	return buf
}

// DecodeEntry deserializes a journal entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	keyLen := binary.LittleEndian.Uint32(data[16:20])
	valLen := binary.LittleEndian.Uint32(data[20:24])
	expectedSize := EntryHeaderSize + int(keyLen) + int(valLen) + 4
	if len(data) < expectedSize {
		return nil, ErrTruncated
	}
	data = data[:expectedSize]

	storedCRC := binary.LittleEndian.Uint32(data[expectedSize-4:])
	if storedCRC != crc32.ChecksumIEEE(data[:expectedSize-4]) {
		return nil, ErrCorrupted
	}

	entry := &Entry{
		LSN:       binary.LittleEndian.Uint64(data[0:8]),
		OpType:    OpType(data[8]),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(data[24:32]))),
	}

	offset := EntryHeaderSize
	if keyLen > 0 {
		entry.Key = append([]byte(nil), data[offset:offset+int(keyLen)]...)
		offset += int(keyLen)
	}
	if valLen > 0 {
		entry.Value = append([]byte(nil), data[offset:offset+int(valLen)]...)
	}
	return entry, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Key) + len(e.Value) + 4
}

func (op OpType) String() string {
	switch op {
	case OpToggle:
		return "TOGGLE"
	case OpRebuild:
		return "REBUILD"
	case OpAlign:
		return "ALIGN"
	case OpCheckpoint:
		return "CHECKPOINT"
	}
	return "UNKNOWN"
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	return fmt.Sprintf("WAL[LSN=%d Op=%s KeyLen=%d ValLen=%d]", e.LSN, e.OpType, len(e.Key), len(e.Value))
}
