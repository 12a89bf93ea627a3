// Copyright 2024 The proxytun Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport defines the abstract byte-stream and resolver
// collaborators that the protocol codecs and connectors are driven
// against. Nothing in this package knows about SOCKS or HTTP CONNECT.
package transport

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// StreamConn is a net.Conn that allows for closing only the reader or writer end
// of it, supporting half-open state. It is the "byte stream" capability set
// that the codecs and connectors are driven against: Read, Write, Close, plus
// the half-close pair. TLS upgrade is handled by transport/tls's WrapConn,
// which wraps a StreamConn in a handshake and hands back another StreamConn.
type StreamConn interface {
	net.Conn
	// CloseRead closes the Read end of the connection, allowing for the release
	// of resources. No more reads should happen.
	CloseRead() error
	// CloseWrite closes the Write end of the connection. An EOF or FIN signal
	// may be sent to the connection target.
	CloseWrite() error
}

// StreamDialer provides a way to dial a destination and establish stream
// connections.
type StreamDialer interface {
	// DialStream connects to raddr, which has the form "host:port". host may be
	// a domain name or an IP address literal.
	DialStream(ctx context.Context, raddr string) (StreamConn, error)
}

// TCPStreamDialer is a [StreamDialer] that uses the standard [net.Dialer] to dial.
type TCPStreamDialer struct {
	Dialer net.Dialer
}

var _ StreamDialer = (*TCPStreamDialer)(nil)

// DialStream implements [StreamDialer].
func (d *TCPStreamDialer) DialStream(ctx context.Context, addr string) (StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// pipeStreamConn adapts a pair of in-memory pipes to [StreamConn], for use in
// tests that need to script a fake proxy's replies without a real socket.
type pipeStreamConn struct {
	Reader     *io.PipeReader
	Writer     *io.PipeWriter
	localAddr  net.Addr
	remoteAddr net.Addr
	timerMu    sync.Mutex
	readTimer  *time.Timer
	writeTimer *time.Timer
}

var _ StreamConn = (*pipeStreamConn)(nil)

// NewPipeStreamConns returns a pair of connected [StreamConn]s backed by
// in-memory pipes, analogous to [net.Pipe] but exposing CloseRead/CloseWrite.
func NewPipeStreamConns() (StreamConn, StreamConn) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	addr1 := pipeAddr("pipe-a")
	addr2 := pipeAddr("pipe-b")
	a := &pipeStreamConn{Reader: r1, Writer: w2, localAddr: addr1, remoteAddr: addr2}
	b := &pipeStreamConn{Reader: r2, Writer: w1, localAddr: addr2, remoteAddr: addr1}
	return a, b
}

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

func (c *pipeStreamConn) LocalAddr() net.Addr  { return c.localAddr }
func (c *pipeStreamConn) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *pipeStreamConn) Read(b []byte) (int, error) {
	n, err := c.Reader.Read(b)
	if err == io.ErrClosedPipe {
		err = net.ErrClosed
	}
	return n, err
}

func (c *pipeStreamConn) CloseRead() error {
	return c.Reader.Close()
}

func (c *pipeStreamConn) Write(b []byte) (int, error) {
	n, err := c.Writer.Write(b)
	if err == io.ErrClosedPipe {
		err = net.ErrClosed
	}
	return n, err
}

func (c *pipeStreamConn) CloseWrite() error {
	return c.Writer.Close()
}

func (c *pipeStreamConn) Close() error {
	c.Reader.Close()
	c.Writer.Close()
	return nil
}

func (c *pipeStreamConn) SetReadDeadline(t time.Time) error {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.readTimer != nil {
		if !c.readTimer.Stop() {
			<-c.readTimer.C
		}
	}
	c.readTimer = time.AfterFunc(time.Until(t), func() { c.Reader.CloseWithError(os.ErrDeadlineExceeded) })
	return nil
}

func (c *pipeStreamConn) SetWriteDeadline(t time.Time) error {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.writeTimer != nil {
		if !c.writeTimer.Stop() {
			<-c.writeTimer.C
		}
	}
	c.writeTimer = time.AfterFunc(time.Until(t), func() { c.Writer.CloseWithError(os.ErrDeadlineExceeded) })
	return nil
}

func (c *pipeStreamConn) SetDeadline(t time.Time) error {
	c.SetReadDeadline(t)
	c.SetWriteDeadline(t)
	return nil
}
