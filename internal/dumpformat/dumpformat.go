// Package dumpformat implements the v1 portable binary record format
// (spec §6): a length-prefixed, self-delimiting stream of records that
// readers can round-trip while ignoring unknown field-name tokens.
//
// Wire layout:
//
//	Header:  u8 version=1
//	         i64 timestamp-ms (epoch, UTC)
//	Body:    repeated Record until EOF
//	Record:  i32 field-count
//	         for each: u8 storeFlags     (bit0=indexed,bit1=tokenized,bit2=stored)
//	                   utf string name   (i16 length + UTF-8 bytes)
//	                   utf string value  (i32 length + UTF-8 bytes)
//
// The stream itself is not compressed here. The packer wraps its published
// full dump and incremental chunks in a gzip stream; the indexing context's
// durable documents log stores records written with WriteRecord
// uncompressed.
package dumpformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"repoindex/internal/record"
)

const Version byte = 1

const (
	flagIndexed   = 1 << 0
	flagTokenized = 1 << 1
	flagStored    = 1 << 2
)

var (
	ErrUnsupportedVersion = errors.New("dumpformat: unsupported version")
	ErrFieldNameTooLong   = errors.New("dumpformat: field name exceeds 65535 bytes")
)

// WriteHeader writes the 9-byte stream header: version byte + big-endian
// epoch-millisecond timestamp.
func WriteHeader(w io.Writer, timestampMs int64) error {
	var buf [9]byte
	buf[0] = Version
	binary.BigEndian.PutUint64(buf[1:], uint64(timestampMs)) //nolint:gosec // G115: epoch millis never negative in practice
	_, err := w.Write(buf[:])
	return err
}

// ReadHeader reads and validates the stream header, returning the
// timestamp it carries.
func ReadHeader(r io.Reader) (timestampMs int64, err error) {
	var buf [9]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	if buf[0] != Version {
		return 0, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, buf[0])
	}
	return int64(binary.BigEndian.Uint64(buf[1:])), nil //nolint:gosec // G115: symmetric with WriteHeader
}

// WriteRecord writes one record: field count then each field.
func WriteRecord(w io.Writer, rec record.Record) error {
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(rec.Fields))) //nolint:gosec // G115: field counts are small
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, f := range rec.Fields {
		if err := writeField(w, f); err != nil {
			return err
		}
	}
	return nil
}

func writeField(w io.Writer, f record.Field) error {
	nameBytes := []byte(f.Name)
	if len(nameBytes) > 0xFFFF {
		return ErrFieldNameTooLong
	}

	flags := byte(0)
	if f.Indexed {
		flags |= flagIndexed
	}
	if f.Tokenized {
		flags |= flagTokenized
	}
	if f.Stored {
		flags |= flagStored
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}

	var nameLenBuf [2]byte
	binary.BigEndian.PutUint16(nameLenBuf[:], uint16(len(nameBytes))) //nolint:gosec // bounds checked above
	if _, err := w.Write(nameLenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(nameBytes); err != nil {
		return err
	}

	valueBytes := []byte(f.Value)
	var valueLenBuf [4]byte
	binary.BigEndian.PutUint32(valueLenBuf[:], uint32(len(valueBytes))) //nolint:gosec // G115: field values are bounded by earlier stages
	if _, err := w.Write(valueLenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(valueBytes)
	return err
}

// ReadRecord reads one record. Unknown field names are preserved verbatim
// (the format carries no schema, so "unknown" only matters to the caller).
func ReadRecord(r io.Reader) (record.Record, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return record.Record{}, err
	}
	count := binary.BigEndian.Uint32(countBuf[:])

	rec := record.Record{Fields: make([]record.Field, 0, count)}
	for range count {
		f, err := readField(r)
		if err != nil {
			return record.Record{}, err
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

func readField(r io.Reader) (record.Field, error) {
	var flagByte [1]byte
	if _, err := io.ReadFull(r, flagByte[:]); err != nil {
		return record.Field{}, err
	}

	var nameLenBuf [2]byte
	if _, err := io.ReadFull(r, nameLenBuf[:]); err != nil {
		return record.Field{}, err
	}
	nameLen := binary.BigEndian.Uint16(nameLenBuf[:])
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return record.Field{}, err
	}

	var valueLenBuf [4]byte
	if _, err := io.ReadFull(r, valueLenBuf[:]); err != nil {
		return record.Field{}, err
	}
	valueLen := binary.BigEndian.Uint32(valueLenBuf[:])
	valueBytes := make([]byte, valueLen)
	if _, err := io.ReadFull(r, valueBytes); err != nil {
		return record.Field{}, err
	}

	flags := flagByte[0]
	return record.Field{
		Name:      string(nameBytes),
		Value:     string(valueBytes),
		Indexed:   flags&flagIndexed != 0,
		Tokenized: flags&flagTokenized != 0,
		Stored:    flags&flagStored != 0,
	}, nil
}

// ReadAllRecords reads records until EOF.
func ReadAllRecords(r io.Reader) ([]record.Record, error) {
	var records []record.Record
	for {
		rec, err := ReadRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return nil, err
		}
		records = append(records, rec)
	}
}
