package wal

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// ReadAll reads every intact entry of a journal file. Reading stops at the
// first torn or corrupted entry, which can only be the tail of a crashed append.
func ReadAll(path string) ([]*Entry, error) {
	fd, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer fd.Close()

	entries, _, err := readEntries(fd)
	return entries, err
}

// readEntries reads entries from r and returns them with the byte length they cover
func readEntries(r io.Reader) ([]*Entry, int64, error) {
	var entries []*Entry
	var valid int64
	for {
		entry, err := readEntry(r)
		if err == io.EOF || errors.Is(err, ErrTruncated) || errors.Is(err, ErrCorrupted) {
			return entries, valid, nil
		}
		if err != nil {
			return entries, valid, err
		}
		entries = append(entries, entry)
		valid += int64(entry.Size())
	}
}

// readEntry reads a single entry from the reader
func readEntry(r io.Reader) (*Entry, error) {
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	keyLen := binary.LittleEndian.Uint32(header[16:20])
	valLen := binary.LittleEndian.Uint32(header[20:24])
	dataLen := int64(keyLen) + int64(valLen) + 4
	if dataLen > maxEntrySize {
		return nil, ErrCorrupted
	}

	data := make([]byte, EntryHeaderSize+int(dataLen))
	copy(data, header)
	if _, err := io.ReadFull(r, data[EntryHeaderSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return DecodeEntry(data)
}
