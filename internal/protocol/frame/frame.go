package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic spells "DISP" on the wire.
	Magic   uint32 = 0x44495350
	Version uint16 = 1

	HeaderLen = 24

	FlagHasAuth uint16 = 0x01
	FlagUrgent  uint16 = 0x02
)

var (
	// ErrProtocolViolation is the root of every unrecoverable decode error.
	// A violation means the stream is desynchronized and the session must close.
	ErrProtocolViolation = errors.New("frame: protocol violation")

	// ErrIncomplete reports that the buffered bytes do not yet hold one
	// whole frame. It is not a violation; feed more bytes and retry.
	ErrIncomplete = errors.New("frame: incomplete frame")

	ErrBadMagic        = fmt.Errorf("%w: bad magic", ErrProtocolViolation)
	ErrBadVersion      = fmt.Errorf("%w: unsupported version", ErrProtocolViolation)
	ErrAuthTooLarge    = fmt.Errorf("%w: auth block too large", ErrProtocolViolation)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrProtocolViolation)
	ErrAuthFlagMissing = fmt.Errorf("%w: auth bytes without auth flag", ErrProtocolViolation)
)

// Header is the fixed wire header preceding every frame.
type Header struct {
	Magic      uint32
	Version    uint16
	Type       uint16
	Flags      uint16
	AuthLen    uint16
	Seq        uint64
	PayloadLen uint32
}

// Frame is one complete wire message: header, optional auth block, payload.
type Frame struct {
	Header  Header
	Auth    []byte
	Payload []byte
}

// Limits bounds per-frame memory use on both encode and decode.
type Limits struct {
	MaxAuthBytes    uint32
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:    4 * 1024,
		MaxPayloadBytes: 1024 * 1024,
	}
}

// Encode serializes f into one self-delimited byte sequence. The header's
// Magic, Version, AuthLen, PayloadLen, and FlagHasAuth are derived; callers
// set Type, Seq, and any remaining flags.
func Encode(f Frame, limits Limits) ([]byte, error) {
	authLen := len(f.Auth)
	payloadLen := len(f.Payload)
	if uint32(authLen) > limits.MaxAuthBytes {
		return nil, ErrAuthTooLarge
	}
	if uint32(payloadLen) > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.AuthLen = uint16(authLen)
	h.PayloadLen = uint32(payloadLen)
	if authLen > 0 {
		h.Flags |= FlagHasAuth
	} else {
		h.Flags &^= FlagHasAuth
	}

	buf := make([]byte, HeaderLen+authLen+payloadLen)
	putHeader(buf, h)
	copy(buf[HeaderLen:], f.Auth)
	copy(buf[HeaderLen+authLen:], f.Payload)
	return buf, nil
}

// WriteTo encodes f and writes it to w in a single Write call so frames
// written by distinct callers cannot interleave mid-frame on the same writer.
func WriteTo(w io.Writer, f Frame, limits Limits) (int, error) {
	buf, err := Encode(f, limits)
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Type)
	binary.BigEndian.PutUint16(buf[8:10], h.Flags)
	binary.BigEndian.PutUint16(buf[10:12], h.AuthLen)
	binary.BigEndian.PutUint64(buf[12:20], h.Seq)
	binary.BigEndian.PutUint32(buf[20:24], h.PayloadLen)
}

// ParseHeader decodes exactly HeaderLen bytes and validates magic and version.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrIncomplete
	}
	h := Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		Type:       binary.BigEndian.Uint16(b[6:8]),
		Flags:      binary.BigEndian.Uint16(b[8:10]),
		AuthLen:    binary.BigEndian.Uint16(b[10:12]),
		Seq:        binary.BigEndian.Uint64(b[12:20]),
		PayloadLen: binary.BigEndian.Uint32(b[20:24]),
	}
	if h.Magic != Magic {
		return Header{}, ErrBadMagic
	}
	if h.Version != Version {
		return Header{}, ErrBadVersion
	}
	if h.AuthLen > 0 && h.Flags&FlagHasAuth == 0 {
		return Header{}, ErrAuthFlagMissing
	}
	return h, nil
}
