// Package tlv owns the field encoding used inside frame payloads.
//
// Each field is id(1) type(1) length(2) value(length), big-endian. Unknown
// field ids survive a decode untouched so newer peers can extend payloads.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const fieldHeaderLen = 4

// Wire type ids.
const (
	TypeU32    uint8 = 1
	TypeU64    uint8 = 2
	TypeBool   uint8 = 3
	TypeString uint8 = 4
	TypeBytes  uint8 = 5
)

var (
	ErrTruncatedField = errors.New("tlv: truncated field")
	ErrValueTooLong   = errors.New("tlv: value exceeds u16 length")
)

// Field is one encoded payload field.
type Field struct {
	ID    uint8
	Type  uint8
	Value []byte
}

// Marshal concatenates fields in order into one payload.
func Marshal(fields []Field) ([]byte, error) {
	size := 0
	for _, f := range fields {
		if len(f.Value) > 0xFFFF {
			return nil, fmt.Errorf("%w: field %d", ErrValueTooLong, f.ID)
		}
		size += fieldHeaderLen + len(f.Value)
	}
	out := make([]byte, 0, size)
	for _, f := range fields {
		out = append(out, f.ID, f.Type)
		out = binary.BigEndian.AppendUint16(out, uint16(len(f.Value)))
		out = append(out, f.Value...)
	}
	return out, nil
}

// Unmarshal decodes a payload into its fields, preserving order and
// unknown ids.
func Unmarshal(payload []byte) ([]Field, error) {
	fields := make([]Field, 0, 4)
	for i := 0; i < len(payload); {
		if len(payload)-i < fieldHeaderLen {
			return nil, ErrTruncatedField
		}
		f := Field{ID: payload[i], Type: payload[i+1]}
		l := int(binary.BigEndian.Uint16(payload[i+2 : i+4]))
		i += fieldHeaderLen
		if len(payload)-i < l {
			return nil, ErrTruncatedField
		}
		f.Value = make([]byte, l)
		copy(f.Value, payload[i:i+l])
		i += l
		fields = append(fields, f)
	}
	return fields, nil
}

// Get returns the first field with the given id.
func Get(fields []Field, id uint8) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func String(id uint8, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func U32(id uint8, v uint32) Field {
	return Field{ID: id, Type: TypeU32, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func U64(id uint8, v uint64) Field {
	return Field{ID: id, Type: TypeU64, Value: binary.BigEndian.AppendUint64(nil, v)}
}

func Bool(id uint8, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func (f Field) AsString() (string, error) {
	if f.Type != TypeString {
		return "", typeMismatch(f, TypeString)
	}
	return string(f.Value), nil
}

func (f Field) AsU32() (uint32, error) {
	if f.Type != TypeU32 {
		return 0, typeMismatch(f, TypeU32)
	}
	if len(f.Value) != 4 {
		return 0, fmt.Errorf("tlv: field %d bad u32 length %d", f.ID, len(f.Value))
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) AsU64() (uint64, error) {
	if f.Type != TypeU64 {
		return 0, typeMismatch(f, TypeU64)
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("tlv: field %d bad u64 length %d", f.ID, len(f.Value))
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) AsBool() (bool, error) {
	if f.Type != TypeBool {
		return false, typeMismatch(f, TypeBool)
	}
	if len(f.Value) != 1 {
		return false, fmt.Errorf("tlv: field %d bad bool length %d", f.ID, len(f.Value))
	}
	return f.Value[0] != 0, nil
}

func typeMismatch(f Field, want uint8) error {
	return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, want)
}
