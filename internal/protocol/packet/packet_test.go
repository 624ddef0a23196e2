package packet

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/displaylink/internal/protocol/frame"
	"github.com/danmuck/displaylink/internal/protocol/schema"
	"github.com/danmuck/displaylink/internal/protocol/tlv"
)

func decodeOne(t *testing.T, buf []byte) (frame.Frame, Packet) {
	t.Helper()
	dec := frame.NewDecoder(frame.DefaultLimits())
	dec.Feed(buf)
	f, err := dec.Next()
	if err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	p, err := Decode(f)
	if err != nil {
		t.Fatalf("packet decode: %v", err)
	}
	return f, p
}

func TestRoundTripLaw(t *testing.T) {
	cases := []Packet{
		Hello{ClientID: "lobby-screen"},
		Login{User: "operator", Secret: "hunter2"},
		AuthGrant{Key: "key-4711", TimestampMS: 1700000000123},
		Info{InfoID: "info.7", Title: "Mensa", Body: "Closed until 14:00"},
		Ping{TimestampMS: 99},
		Pong{TimestampMS: 99},
		ServerError{Code: 503, Message: "maintenance"},
		Goodbye{Reason: "client shutdown"},
	}
	for _, in := range cases {
		buf, err := Encode(1, in, nil, frame.DefaultLimits())
		if err != nil {
			t.Fatalf("%s encode: %v", schema.Name(in.Type()), err)
		}
		_, out := decodeOne(t, buf)
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("%s round trip mismatch:\n in=%+v\nout=%+v",
				schema.Name(in.Type()), in, out)
		}
	}
}

func TestEncodeAttachesAuthBlock(t *testing.T) {
	buf, err := Encode(3, Goodbye{Reason: "bye"}, []byte("key-4711"), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, _ := decodeOne(t, buf)
	if f.Header.Flags&frame.FlagHasAuth == 0 {
		t.Fatalf("auth flag not set")
	}
	if string(f.Auth) != "key-4711" {
		t.Fatalf("unexpected auth block %q", f.Auth)
	}
}

func TestDecodeUnknownTypeIsViolation(t *testing.T) {
	raw, err := frame.Encode(frame.Frame{Header: frame.Header{Type: 200, Seq: 1}}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := frame.NewDecoder(frame.DefaultLimits())
	dec.Feed(raw)
	f, err := dec.Next()
	if err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if _, err := Decode(f); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := Decode(f); !errors.Is(err, frame.ErrProtocolViolation) {
		t.Fatalf("unknown type must be a protocol violation")
	}
}

func TestDecodeMissingFieldIsViolation(t *testing.T) {
	// Info frame missing its required body field.
	payload, err := tlv.Marshal([]tlv.Field{
		tlv.String(schema.FieldInfoID, "info.1"),
		tlv.String(schema.FieldTitle, "Title"),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p, err := Decode(frame.Frame{
		Header:  frame.Header{Magic: frame.Magic, Version: frame.Version, Type: schema.MsgInfo},
		Payload: payload,
	})
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got packet=%v err=%v", p, err)
	}
}

func TestEncodeRejectsEmptyIdentity(t *testing.T) {
	if _, err := Encode(1, Hello{}, nil, frame.DefaultLimits()); err == nil {
		t.Fatalf("hello without client_id must fail")
	}
	if _, err := Encode(1, Login{Secret: "x"}, nil, frame.DefaultLimits()); err == nil {
		t.Fatalf("login without user must fail")
	}
}
