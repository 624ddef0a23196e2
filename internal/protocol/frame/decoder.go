package frame

// Decoder incrementally parses a byte stream into frames. Feed it whatever
// the transport read; Next hands back complete frames and reports
// ErrIncomplete while a frame is still partial. Any other error from Next
// wraps ErrProtocolViolation and the stream must be abandoned.
type Decoder struct {
	limits Limits
	buf    []byte
	failed error
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// Feed appends raw transport bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.buf = append(d.buf, p...)
}

// Buffered reports how many undecoded bytes are pending.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame. Declared lengths are checked against
// the configured limits before any body bytes arrive, so an oversized frame
// fails as a violation instead of allocating for it. After a violation the
// decoder is poisoned and keeps returning the same error.
func (d *Decoder) Next() (Frame, error) {
	if d.failed != nil {
		return Frame{}, d.failed
	}
	if len(d.buf) < HeaderLen {
		return Frame{}, ErrIncomplete
	}

	h, err := ParseHeader(d.buf[:HeaderLen])
	if err != nil {
		d.failed = err
		return Frame{}, err
	}
	if uint32(h.AuthLen) > d.limits.MaxAuthBytes {
		d.failed = ErrAuthTooLarge
		return Frame{}, ErrAuthTooLarge
	}
	if h.PayloadLen > d.limits.MaxPayloadBytes {
		d.failed = ErrPayloadTooLarge
		return Frame{}, ErrPayloadTooLarge
	}

	total := HeaderLen + int(h.AuthLen) + int(h.PayloadLen)
	if len(d.buf) < total {
		return Frame{}, ErrIncomplete
	}

	f := Frame{Header: h}
	if h.AuthLen > 0 {
		f.Auth = make([]byte, h.AuthLen)
		copy(f.Auth, d.buf[HeaderLen:HeaderLen+int(h.AuthLen)])
	}
	if h.PayloadLen > 0 {
		f.Payload = make([]byte, h.PayloadLen)
		copy(f.Payload, d.buf[HeaderLen+int(h.AuthLen):total])
	}

	rest := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:rest]
	return f, nil
}
