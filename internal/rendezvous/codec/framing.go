package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize selects which of the two length-header widths a reliable
// stream uses. Spec.md §4.1: "Two header sizes exist: one for R+R
// (larger, supports bigger payloads) and one for P+S (smaller)."
type HeaderSize int

const (
	// HeaderRR is the 4-byte big-endian header used for request/
	// response traffic, supporting payloads up to 4GiB (bounded in
	// practice by the configured cap).
	HeaderRR HeaderSize = 4
	// HeaderPS is the 2-byte big-endian header used for publish/
	// subscribe traffic, supporting payloads up to 64KiB.
	HeaderPS HeaderSize = 2
)

// ErrFrameTooLarge is returned when a declared length exceeds the
// configured cap (spec.md §4.1, FRAMING_TOO_LARGE).
var ErrFrameTooLarge = errors.New("codec: declared frame length exceeds cap")

// WriteFrame writes the length-prefixed body to w: size bytes of
// big-endian length, then the body itself.
func WriteFrame(w io.Writer, size HeaderSize, body []byte) error {
	header := make([]byte, size)
	switch size {
	case HeaderRR:
		binary.BigEndian.PutUint32(header, uint32(len(body)))
	case HeaderPS:
		if len(body) > 0xFFFF {
			return fmt.Errorf("codec: body of %d bytes exceeds P+S header capacity", len(body))
		}
		binary.BigEndian.PutUint16(header, uint16(len(body)))
	default:
		return fmt.Errorf("codec: unsupported header size %d", size)
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed message from r: the declared
// length is read first and, if it exceeds cap, ErrFrameTooLarge is
// returned without attempting to read the (possibly bogus) body —
// the caller is expected to disconnect the socket on this error
// (spec.md §8 scenario 6).
func ReadFrame(r io.Reader, size HeaderSize, cap int) ([]byte, error) {
	header := make([]byte, size)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	var length int
	switch size {
	case HeaderRR:
		length = int(binary.BigEndian.Uint32(header))
	case HeaderPS:
		length = int(binary.BigEndian.Uint16(header))
	default:
		return nil, fmt.Errorf("codec: unsupported header size %d", size)
	}

	if length > cap {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
