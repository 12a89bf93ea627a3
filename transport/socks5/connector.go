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

package socks5

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/proxytun/proxytun/transport"
)

// Connector drives the SOCKS5 handshake (method negotiation, optional
// username/password sub-auth, CONNECT request) over an already-open
// [transport.StreamConn]. It does not dial; the caller (the proxy engine)
// owns the underlying connection and its deadline.
type Connector struct {
	// Username and Password, if both non-empty, are offered via RFC 1929
	// username/password authentication.
	Username string
	Password string
	// RDNS selects remote DNS resolution: when true (the default zero value
	// means false, so callers must set this explicitly), the destination host
	// name is sent to the proxy unresolved; when false, Resolver is used to
	// resolve it locally and the literal IP address is sent instead. Hosts
	// that are already IP literals are never resolved.
	RDNS bool
	// Resolver resolves host names when RDNS is false. Defaults to
	// [transport.DefaultResolver] when nil.
	Resolver transport.Resolver
}

// Connect performs the SOCKS5 handshake for a CONNECT to host:port over conn.
// On success, conn is ready to carry the tunneled byte stream.
func (c *Connector) Connect(ctx context.Context, conn transport.StreamConn, host string, port uint16) error {
	if err := c.negotiateMethod(conn); err != nil {
		return err
	}

	target := host
	if !c.RDNS && !transport.IsIPLiteral(host) {
		resolver := c.Resolver
		if resolver == nil {
			resolver = transport.DefaultResolver
		}
		_, ip, err := resolver.Resolve(ctx, host, transport.Unspec)
		if err != nil {
			return fmt.Errorf("socks5: failed to resolve %s: %w", host, err)
		}
		target = ip
	}

	req, err := EncodeConnectRequest(target, port)
	if err != nil {
		return fmt.Errorf("socks5: failed to encode connect request: %w", err)
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks5: failed to write connect request: %w", err)
	}
	return c.readConnectReply(conn)
}

func (c *Connector) negotiateMethod(conn transport.StreamConn) error {
	if _, err := conn.Write(EncodeMethodRequest(c.Username, c.Password)); err != nil {
		return fmt.Errorf("socks5: failed to write method request: %w", err)
	}
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("socks5: failed to read method reply: %w", err)
	}
	method, err := DecodeMethodReply(reply)
	if err != nil {
		return err
	}
	switch method {
	case AuthMethodUsernamePassword:
		return c.authenticate(conn)
	case AuthMethodNoAuth:
		return nil
	default:
		return &ReplyError{Msg: "server selected unrequested auth method " + strconv.Itoa(int(method))}
	}
}

func (c *Connector) authenticate(conn transport.StreamConn) error {
	req, err := EncodeAuthRequest(c.Username, c.Password)
	if err != nil {
		return fmt.Errorf("socks5: %w", err)
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks5: failed to write auth request: %w", err)
	}
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("socks5: failed to read auth reply: %w", err)
	}
	return DecodeAuthReply(reply)
}

func (c *Connector) readConnectReply(conn transport.StreamConn) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return fmt.Errorf("socks5: failed to read connect reply header: %w", err)
	}

	tail, hasLenPrefix, err := TailLen(header[3])
	if err != nil {
		return err
	}
	frame := header
	if hasLenPrefix {
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return fmt.Errorf("socks5: failed to read domain length: %w", err)
		}
		frame = append(frame, lenByte[0])
		tail = int(lenByte[0]) + 2
	}
	if tail > 0 {
		rest := make([]byte, tail)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return fmt.Errorf("socks5: failed to read connect reply address: %w", err)
		}
		frame = append(frame, rest...)
	}
	return DecodeConnectReply(frame)
}
