// Package wire provides the primitive big endian read and write functions
// the ledger codecs are built on. Every multi-byte value that crosses the
// wire goes through these helpers so the byte order is decided in one place.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when bytes read from the wire cannot satisfy the
// value being decoded.
var ErrMalformed = errors.New("malformed wire data")

// MaxBlobLength caps variable length fields so a corrupt length prefix
// cannot ask the decoder to allocate unbounded memory.
const MaxBlobLength = 10 * 1024 * 1024

// =============================================================================

// WriteUint8 serializes a single byte to the writer.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint16 serializes a big endian uint16 to the writer.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint32 serializes a big endian uint32 to the writer.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64 serializes a big endian uint64 to the writer.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteBytes serializes the raw bytes to the writer with no length prefix.
func WriteBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// WriteBlob serializes a variable length byte field with a 4 byte length
// prefix.
func WriteBlob(w io.Writer, b []byte) error {
	if len(b) > MaxBlobLength {
		return fmt.Errorf("blob of %d bytes exceeds the %d byte limit: %w", len(b), MaxBlobLength, ErrMalformed)
	}

	if err := WriteUint32(w, uint32(len(b))); err != nil {
		return err
	}

	_, err := w.Write(b)
	return err
}

// WriteString serializes a string with a 4 byte length prefix.
func WriteString(w io.Writer, s string) error {
	return WriteBlob(w, []byte(s))
}

// =============================================================================

// ReadUint8 deserializes a single byte from the reader.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, mapEOF(err)
	}

	return buf[0], nil
}

// ReadUint16 deserializes a big endian uint16 from the reader.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, mapEOF(err)
	}

	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadUint32 deserializes a big endian uint32 from the reader.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, mapEOF(err)
	}

	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadUint64 deserializes a big endian uint64 from the reader.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, mapEOF(err)
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadBytes deserializes exactly length raw bytes from the reader.
func ReadBytes(r io.Reader, length int) ([]byte, error) {
	if length < 0 || length > MaxBlobLength {
		return nil, fmt.Errorf("read of %d bytes is out of range: %w", length, ErrMalformed)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, mapEOF(err)
	}

	return buf, nil
}

// ReadBlob deserializes a variable length byte field written by WriteBlob.
func ReadBlob(r io.Reader) ([]byte, error) {
	length, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}

	if length > MaxBlobLength {
		return nil, fmt.Errorf("blob length %d exceeds the %d byte limit: %w", length, MaxBlobLength, ErrMalformed)
	}

	return ReadBytes(r, int(length))
}

// ReadString deserializes a string written by WriteString.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBlob(r)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// =============================================================================

// mapEOF folds the two flavors of truncation the io package reports into the
// single malformed error the codecs work with.
func mapEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("unexpected end of data: %w", ErrMalformed)
	}

	return err
}
