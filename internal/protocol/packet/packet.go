// Package packet maps typed protocol messages onto wire frames.
//
// Packets are immutable value types: construct, encode, forget. Inbound
// frames decode to exactly one packet; an unknown or malformed frame is a
// protocol violation, never a partial result.
package packet

import (
	"fmt"
	"strings"

	"github.com/danmuck/displaylink/internal/protocol/frame"
	"github.com/danmuck/displaylink/internal/protocol/schema"
	"github.com/danmuck/displaylink/internal/protocol/tlv"
)

var (
	ErrUnknownType = fmt.Errorf("%w: unknown packet type", frame.ErrProtocolViolation)
	ErrBadPayload  = fmt.Errorf("%w: malformed packet payload", frame.ErrProtocolViolation)
)

// Packet is one discrete protocol message.
type Packet interface {
	Type() uint16
}

// Hello announces the client identity right after connect.
type Hello struct {
	ClientID string
}

func (Hello) Type() uint16 { return schema.MsgHello }

// Login carries user credentials to the server.
type Login struct {
	User   string
	Secret string
}

func (Login) Type() uint16 { return schema.MsgLogin }

// AuthGrant is the server-issued session key.
type AuthGrant struct {
	Key         string
	TimestampMS uint64
}

func (AuthGrant) Type() uint16 { return schema.MsgAuthGrant }

// Info is one display content update.
type Info struct {
	InfoID string
	Title  string
	Body   string
}

func (Info) Type() uint16 { return schema.MsgInfo }

// Ping is a liveness probe; the server answers with Pong.
type Ping struct {
	TimestampMS uint64
}

func (Ping) Type() uint16 { return schema.MsgPing }

// Pong answers a Ping, echoing its timestamp.
type Pong struct {
	TimestampMS uint64
}

func (Pong) Type() uint16 { return schema.MsgPong }

// ServerError reports a server-side failure for display to the operator.
type ServerError struct {
	Code    uint32
	Message string
}

func (ServerError) Type() uint16 { return schema.MsgServerError }

// Goodbye is the disconnect notice sent before the client closes the
// transport.
type Goodbye struct {
	Reason string
}

func (Goodbye) Type() uint16 { return schema.MsgGoodbye }

// Encode serializes p into one wire frame. The auth block is attached as
// given; callers decide whether the packet type needs one via
// schema.RequiresAuth.
func Encode(seq uint64, p Packet, auth []byte, limits frame.Limits) ([]byte, error) {
	fields, err := fieldsOf(p)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(p.Type(), fields); err != nil {
		return nil, err
	}
	payload, err := tlv.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return frame.Encode(frame.Frame{
		Header:  frame.Header{Type: p.Type(), Seq: seq},
		Auth:    auth,
		Payload: payload,
	}, limits)
}

// Decode turns one complete frame into its typed packet.
func Decode(f frame.Frame) (Packet, error) {
	if !schema.Known(f.Header.Type) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, f.Header.Type)
	}
	fields, err := tlv.Unmarshal(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := schema.Validate(f.Header.Type, fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch f.Header.Type {
	case schema.MsgHello:
		return Hello{ClientID: mustString(fields, schema.FieldClientID)}, nil
	case schema.MsgLogin:
		return Login{
			User:   mustString(fields, schema.FieldUser),
			Secret: mustString(fields, schema.FieldSecret),
		}, nil
	case schema.MsgAuthGrant:
		g := AuthGrant{Key: mustString(fields, schema.FieldKey)}
		if ts, ok := tlv.Get(fields, schema.FieldTimestampMS); ok {
			if v, err := ts.AsU64(); err == nil {
				g.TimestampMS = v
			}
		}
		return g, nil
	case schema.MsgInfo:
		return Info{
			InfoID: mustString(fields, schema.FieldInfoID),
			Title:  mustString(fields, schema.FieldTitle),
			Body:   mustString(fields, schema.FieldBody),
		}, nil
	case schema.MsgPing:
		return Ping{TimestampMS: mustU64(fields, schema.FieldTimestampMS)}, nil
	case schema.MsgPong:
		return Pong{TimestampMS: mustU64(fields, schema.FieldTimestampMS)}, nil
	case schema.MsgServerError:
		return ServerError{
			Code:    mustU32(fields, schema.FieldCode),
			Message: mustString(fields, schema.FieldMessage),
		}, nil
	case schema.MsgGoodbye:
		return Goodbye{Reason: mustString(fields, schema.FieldReason)}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownType, f.Header.Type)
}

func fieldsOf(p Packet) ([]tlv.Field, error) {
	switch v := p.(type) {
	case Hello:
		if strings.TrimSpace(v.ClientID) == "" {
			return nil, fmt.Errorf("packet: hello missing client_id")
		}
		return []tlv.Field{tlv.String(schema.FieldClientID, v.ClientID)}, nil
	case Login:
		if strings.TrimSpace(v.User) == "" {
			return nil, fmt.Errorf("packet: login missing user")
		}
		return []tlv.Field{
			tlv.String(schema.FieldUser, v.User),
			tlv.String(schema.FieldSecret, v.Secret),
		}, nil
	case AuthGrant:
		if strings.TrimSpace(v.Key) == "" {
			return nil, fmt.Errorf("packet: auth.grant missing key")
		}
		fields := []tlv.Field{tlv.String(schema.FieldKey, v.Key)}
		if v.TimestampMS != 0 {
			fields = append(fields, tlv.U64(schema.FieldTimestampMS, v.TimestampMS))
		}
		return fields, nil
	case Info:
		return []tlv.Field{
			tlv.String(schema.FieldInfoID, v.InfoID),
			tlv.String(schema.FieldTitle, v.Title),
			tlv.String(schema.FieldBody, v.Body),
		}, nil
	case Ping:
		return []tlv.Field{tlv.U64(schema.FieldTimestampMS, v.TimestampMS)}, nil
	case Pong:
		return []tlv.Field{tlv.U64(schema.FieldTimestampMS, v.TimestampMS)}, nil
	case ServerError:
		return []tlv.Field{
			tlv.U32(schema.FieldCode, v.Code),
			tlv.String(schema.FieldMessage, v.Message),
		}, nil
	case Goodbye:
		return []tlv.Field{tlv.String(schema.FieldReason, v.Reason)}, nil
	}
	return nil, fmt.Errorf("packet: unencodable type %T", p)
}

func mustString(fields []tlv.Field, id uint8) string {
	f, _ := tlv.Get(fields, id)
	s, _ := f.AsString()
	return s
}

func mustU32(fields []tlv.Field, id uint8) uint32 {
	f, _ := tlv.Get(fields, id)
	v, _ := f.AsU32()
	return v
}

func mustU64(fields []tlv.Field, id uint8) uint64 {
	f, _ := tlv.Get(fields, id)
	v, _ := f.AsU64()
	return v
}
