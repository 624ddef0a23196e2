package schema

import (
	"errors"
	"testing"

	"github.com/danmuck/displaylink/internal/protocol/tlv"
)

func TestValidateRequiredFields(t *testing.T) {
	fields := []tlv.Field{
		tlv.String(FieldInfoID, "info.1"),
		tlv.String(FieldTitle, "Timetable"),
		tlv.String(FieldBody, "Bus 12 delayed"),
	}
	if err := Validate(MsgInfo, fields); err != nil {
		t.Fatalf("valid info rejected: %v", err)
	}

	if err := Validate(MsgInfo, fields[:2]); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestValidateFieldTypeMismatch(t *testing.T) {
	fields := []tlv.Field{tlv.U64(FieldClientID, 7)}
	if err := Validate(MsgHello, fields); !errors.Is(err, ErrFieldType) {
		t.Fatalf("expected ErrFieldType, got %v", err)
	}
}

func TestValidateUnknownType(t *testing.T) {
	if err := Validate(999, nil); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestValidateAllowsExtraFields(t *testing.T) {
	fields := []tlv.Field{
		tlv.String(FieldClientID, "lobby-screen"),
		{ID: 250, Type: tlv.TypeBytes, Value: []byte{1, 2}},
	}
	if err := Validate(MsgHello, fields); err != nil {
		t.Fatalf("extra field rejected: %v", err)
	}
}

func TestRequiresAuth(t *testing.T) {
	if RequiresAuth(MsgHello) || RequiresAuth(MsgLogin) {
		t.Fatalf("pre-auth types must not require auth")
	}
	if !RequiresAuth(MsgPing) || !RequiresAuth(MsgGoodbye) {
		t.Fatalf("authenticated types must require auth")
	}
	if RequiresAuth(12345) {
		t.Fatalf("unknown type must not require auth")
	}
}

func TestName(t *testing.T) {
	if got := Name(MsgGoodbye); got != "goodbye" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := Name(12345); got != "unknown(12345)" {
		t.Fatalf("unexpected name %q", got)
	}
}
