// Package schema is the message-type registry for the display protocol.
//
// It names every message type, declares which payload fields each one
// requires, and marks the types that must carry an authentication block.
package schema

import (
	"errors"
	"fmt"

	"github.com/danmuck/displaylink/internal/protocol/tlv"
)

// Message type ids carried in the frame header.
const (
	MsgHello       uint16 = 1
	MsgLogin       uint16 = 2
	MsgAuthGrant   uint16 = 3
	MsgInfo        uint16 = 4
	MsgPing        uint16 = 5
	MsgPong        uint16 = 6
	MsgServerError uint16 = 7
	MsgGoodbye     uint16 = 8
)

// Payload field ids.
const (
	FieldClientID    uint8 = 1
	FieldUser        uint8 = 2
	FieldSecret      uint8 = 3
	FieldKey         uint8 = 4
	FieldInfoID      uint8 = 5
	FieldTitle       uint8 = 6
	FieldBody        uint8 = 7
	FieldCode        uint8 = 8
	FieldMessage     uint8 = 9
	FieldReason      uint8 = 10
	FieldTimestampMS uint8 = 11
)

var (
	ErrUnknownMessageType = errors.New("schema: unknown message type")
	ErrMissingField       = errors.New("schema: missing required field")
	ErrFieldType          = errors.New("schema: field type mismatch")
)

// FieldSpec declares one required field of a message type.
type FieldSpec struct {
	ID   uint8
	Type uint8
}

type entry struct {
	name         string
	requiresAuth bool
	required     []FieldSpec
}

var registry = map[uint16]entry{
	MsgHello: {
		name:     "hello",
		required: []FieldSpec{{FieldClientID, tlv.TypeString}},
	},
	MsgLogin: {
		name: "login",
		required: []FieldSpec{
			{FieldUser, tlv.TypeString},
			{FieldSecret, tlv.TypeString},
		},
	},
	MsgAuthGrant: {
		name:     "auth.grant",
		required: []FieldSpec{{FieldKey, tlv.TypeString}},
	},
	MsgInfo: {
		name: "info",
		required: []FieldSpec{
			{FieldInfoID, tlv.TypeString},
			{FieldTitle, tlv.TypeString},
			{FieldBody, tlv.TypeString},
		},
	},
	MsgPing: {
		name:         "ping",
		requiresAuth: true,
		required:     []FieldSpec{{FieldTimestampMS, tlv.TypeU64}},
	},
	MsgPong: {
		name:     "pong",
		required: []FieldSpec{{FieldTimestampMS, tlv.TypeU64}},
	},
	MsgServerError: {
		name: "server.error",
		required: []FieldSpec{
			{FieldCode, tlv.TypeU32},
			{FieldMessage, tlv.TypeString},
		},
	},
	MsgGoodbye: {
		name:         "goodbye",
		requiresAuth: true,
		required:     []FieldSpec{{FieldReason, tlv.TypeString}},
	},
}

// Known reports whether the message type is registered.
func Known(msgType uint16) bool {
	_, ok := registry[msgType]
	return ok
}

// Name returns a stable log-friendly name for the message type.
func Name(msgType uint16) string {
	if e, ok := registry[msgType]; ok {
		return e.name
	}
	return fmt.Sprintf("unknown(%d)", msgType)
}

// RequiresAuth reports whether outbound frames of this type must carry the
// session's authentication key.
func RequiresAuth(msgType uint16) bool {
	e, ok := registry[msgType]
	return ok && e.requiresAuth
}

// Validate checks that fields satisfy the message type's required set.
// Extra and unknown fields are permitted.
func Validate(msgType uint16, fields []tlv.Field) error {
	e, ok := registry[msgType]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessageType, msgType)
	}
	for _, spec := range e.required {
		f, ok := tlv.Get(fields, spec.ID)
		if !ok {
			return fmt.Errorf("%w: %s field %d", ErrMissingField, e.name, spec.ID)
		}
		if f.Type != spec.Type {
			return fmt.Errorf("%w: %s field %d got %d want %d",
				ErrFieldType, e.name, spec.ID, f.Type, spec.Type)
		}
	}
	return nil
}
