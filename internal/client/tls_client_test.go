package client

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/danmuck/displaylink/internal/protocol/packet"
	"github.com/danmuck/displaylink/internal/protocol/schema"
	"github.com/danmuck/displaylink/internal/testutil/testlog"
	"github.com/danmuck/displaylink/internal/testutil/tlstest"
)

func TestTLSConnectAndSend(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir)
	serverCert := ca.ServerCert(t, "127.0.0.1")

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{serverCert},
	})
	if err != nil {
		t.Fatalf("tls listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn
	}()

	addr := ln.Addr().(*net.TCPAddr)
	cfg := DefaultConfig()
	cfg.Host = addr.IP.String()
	cfg.Port = addr.Port
	cfg.ClientID = "secure-screen"
	cfg.TLS = TLSConfig{
		Enabled:    true,
		CAFile:     ca.CAFile(),
		ServerName: "127.0.0.1",
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	errc := runClient(c)
	if err := c.AwaitReady(5 * time.Second); err != nil {
		t.Fatalf("await ready over tls: %v", err)
	}

	var conn net.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never accepted")
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := c.Send(packet.Hello{ClientID: "secure-screen"}); err != nil {
		t.Fatalf("send over tls: %v", err)
	}
	frames := readWireFrames(t, conn, 1, 3*time.Second)
	if frames[0].Header.Type != schema.MsgHello {
		t.Fatalf("unexpected frame %s", schema.Name(frames[0].Header.Type))
	}

	_ = c.Disconnect()
	_ = waitRun(t, errc, 3*time.Second)
}

func TestTLSRefusesUnknownAuthority(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	serverCA := tlstest.NewAuthority(t, dir)
	serverCert := serverCA.ServerCert(t, "127.0.0.1")

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{serverCert},
	})
	if err != nil {
		t.Fatalf("tls listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			if _, err := ln.Accept(); err != nil {
				return
			}
		}
	}()

	// The client trusts a different authority entirely.
	clientCA := tlstest.NewAuthority(t, t.TempDir())

	addr := ln.Addr().(*net.TCPAddr)
	cfg := DefaultConfig()
	cfg.Host = addr.IP.String()
	cfg.Port = addr.Port
	cfg.ClientID = "secure-screen"
	cfg.TLS = TLSConfig{
		Enabled:    true,
		CAFile:     clientCA.CAFile(),
		ServerName: "127.0.0.1",
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	errc := runClient(c)
	if err := c.AwaitReady(5 * time.Second); err == nil {
		t.Fatalf("handshake against unknown authority must fail")
	}
	if err := waitRun(t, errc, 3*time.Second); err == nil {
		t.Fatalf("run must surface the handshake failure")
	}
}
