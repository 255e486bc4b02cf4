// Package udp re-emits raw sentences to a UDP consumer, typically a
// chartplotter or OpenCPN listening on 10110.
package udp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultDest is the conventional NMEA-over-UDP port on localhost.
const DefaultDest = "127.0.0.1:10110"

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Forwarder writes one datagram per sentence, CRLF-terminated. Send
// failures are counted and remembered but never block the feed.
type Forwarder struct {
	dest string
	conn udpConn

	sent    atomic.Uint64
	dropped atomic.Uint64

	mu      sync.Mutex
	lastErr string
}

type Snapshot struct {
	Dest      string `json:"dest"`
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
	LastError string `json:"last_error,omitempty"`
}

func NewForwarder(dest string) (*Forwarder, error) {
	if dest == "" {
		dest = DefaultDest
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	}
	return newForwarder(dest, net.ResolveUDPAddr, dial)
}

func newForwarder(dest string, resolve resolveFunc, dial dialFunc) (*Forwarder, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Forwarder{
		dest: dest,
		conn: conn,
	}, nil
}

// Send forwards one sentence. The line must not carry its own line
// terminator; CRLF is appended per NMEA-0183 framing.
func (f *Forwarder) Send(line string) error {
	if line == "" {
		return nil
	}
	_, err := f.conn.Write([]byte(line + "\r\n"))
	if err != nil {
		f.dropped.Add(1)
		f.mu.Lock()
		f.lastErr = err.Error()
		f.mu.Unlock()
		return err
	}
	f.sent.Add(1)
	return nil
}

func (f *Forwarder) Snapshot() Snapshot {
	f.mu.Lock()
	lastErr := f.lastErr
	f.mu.Unlock()
	return Snapshot{
		Dest:      f.dest,
		Sent:      f.sent.Load(),
		Dropped:   f.dropped.Load(),
		LastError: lastErr,
	}
}

func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
