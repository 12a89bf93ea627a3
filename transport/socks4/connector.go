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

package socks4

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/proxytun/proxytun/transport"
)

// Connector drives a SOCKS4/4a CONNECT request over an already-open
// [transport.StreamConn].
type Connector struct {
	// UserID is sent in the USERID field of the request. May be empty.
	UserID string
	// RDNS selects the SOCKS4a extension: when true, the destination host
	// name is sent to the proxy unresolved (using the 0.0.0.x pseudo-IP);
	// when false, Resolver resolves it to an IPv4 address first. Hosts that
	// are already IPv4 literals are always sent as-is, regardless of RDNS.
	RDNS bool
	// Resolver resolves host names when RDNS is false. Defaults to
	// [transport.DefaultResolver] when nil.
	Resolver transport.Resolver
}

// Connect performs the SOCKS4/4a handshake for a CONNECT to host:port over conn.
func (c *Connector) Connect(ctx context.Context, conn transport.StreamConn, host string, port uint16) error {
	var ip net.IP
	domain := ""

	if literal := net.ParseIP(host); literal != nil {
		if ip = literal.To4(); ip == nil {
			return fmt.Errorf("socks4: destination address %s is not IPv4", host)
		}
	} else if c.RDNS {
		domain = host
	} else {
		resolver := c.Resolver
		if resolver == nil {
			resolver = transport.DefaultResolver
		}
		_, resolved, err := resolver.Resolve(ctx, host, transport.IPv4)
		if err != nil {
			return fmt.Errorf("socks4: failed to resolve %s: %w", host, err)
		}
		if ip = net.ParseIP(resolved).To4(); ip == nil {
			return fmt.Errorf("socks4: resolver returned non-IPv4 address %s for %s", resolved, host)
		}
	}

	req, err := EncodeConnectRequest(ip, domain, port, c.UserID)
	if err != nil {
		return err
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks4: failed to write connect request: %w", err)
	}

	reply := make([]byte, 8)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("socks4: failed to read connect reply: %w", err)
	}
	return DecodeConnectReply(reply)
}
