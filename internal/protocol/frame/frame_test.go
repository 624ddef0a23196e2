package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Frame{
		Header:  Header{Type: 4, Seq: 42},
		Auth:    []byte("session-key"),
		Payload: []byte("display payload"),
	}
	buf, err := Encode(in, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder(DefaultLimits())
	dec.Feed(buf)
	out, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Header.Type != 4 || out.Header.Seq != 42 {
		t.Fatalf("unexpected header: %+v", out.Header)
	}
	if out.Header.Flags&FlagHasAuth == 0 {
		t.Fatalf("auth flag not set")
	}
	if !bytes.Equal(out.Auth, in.Auth) || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("body mismatch: %+v", out)
	}
	if dec.Buffered() != 0 {
		t.Fatalf("decoder retained %d bytes", dec.Buffered())
	}
}

func TestDecoderPartialPrefixNeverViolates(t *testing.T) {
	buf, err := Encode(Frame{
		Header:  Header{Type: 5, Seq: 7},
		Payload: []byte("abcdefgh"),
	}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for cut := 0; cut < len(buf); cut++ {
		dec := NewDecoder(DefaultLimits())
		dec.Feed(buf[:cut])
		if _, err := dec.Next(); !errors.Is(err, ErrIncomplete) {
			t.Fatalf("cut=%d expected ErrIncomplete, got %v", cut, err)
		}
		dec.Feed(buf[cut:])
		if _, err := dec.Next(); err != nil {
			t.Fatalf("cut=%d completed frame failed: %v", cut, err)
		}
	}
}

func TestDecoderBackToBackFrames(t *testing.T) {
	limits := DefaultLimits()
	var stream []byte
	for seq := uint64(1); seq <= 3; seq++ {
		buf, err := Encode(Frame{
			Header:  Header{Type: uint16(seq), Seq: seq},
			Payload: []byte{byte(seq)},
		}, limits)
		if err != nil {
			t.Fatalf("encode seq=%d: %v", seq, err)
		}
		stream = append(stream, buf...)
	}

	dec := NewDecoder(limits)
	dec.Feed(stream)
	for seq := uint64(1); seq <= 3; seq++ {
		f, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", seq, err)
		}
		if f.Header.Seq != seq || len(f.Payload) != 1 || f.Payload[0] != byte(seq) {
			t.Fatalf("frame %d mismatch: %+v", seq, f)
		}
	}
	if _, err := dec.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected empty decoder, got %v", err)
	}
}

func TestDecoderOversizedPayloadIsViolation(t *testing.T) {
	big, err := Encode(Frame{
		Header:  Header{Type: 4, Seq: 1},
		Payload: make([]byte, 512),
	}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Header alone declares the oversized payload; body bytes never arrive.
	dec := NewDecoder(Limits{MaxAuthBytes: 4096, MaxPayloadBytes: 128})
	dec.Feed(big[:HeaderLen])
	_, err = dec.Next()
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("oversize must wrap ErrProtocolViolation, got %v", err)
	}

	// Poisoned decoder keeps failing.
	dec.Feed(big[HeaderLen:])
	if _, err := dec.Next(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected poisoned decoder, got %v", err)
	}
}

func TestDecoderBadMagic(t *testing.T) {
	buf, err := Encode(Frame{Header: Header{Type: 1, Seq: 1}}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf[0] ^= 0xFF

	dec := NewDecoder(DefaultLimits())
	dec.Feed(buf)
	if _, err := dec.Next(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestEncodeRejectsOversize(t *testing.T) {
	limits := Limits{MaxAuthBytes: 4, MaxPayloadBytes: 4}
	if _, err := Encode(Frame{Auth: make([]byte, 5)}, limits); !errors.Is(err, ErrAuthTooLarge) {
		t.Fatalf("expected ErrAuthTooLarge, got %v", err)
	}
	if _, err := Encode(Frame{Payload: make([]byte, 5)}, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteToSingleWrite(t *testing.T) {
	var w countingWriter
	f := Frame{Header: Header{Type: 5, Seq: 9}, Payload: []byte("ping")}
	n, err := WriteTo(&w, f, DefaultLimits())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("expected one Write call, got %d", w.calls)
	}
	if n != HeaderLen+4 {
		t.Fatalf("unexpected length %d", n)
	}
}

type countingWriter struct {
	calls int
	buf   bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls++
	return w.buf.Write(p)
}
