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

package httpconnect

import (
	"fmt"

	"github.com/proxytun/proxytun/transport"
)

// maxHeaderBlock bounds how many bytes readHeaderBlock will read before
// giving up, guarding against a proxy that never terminates its headers.
const maxHeaderBlock = 64 * 1024

// Connector drives the HTTP CONNECT handshake over an already-open
// [transport.StreamConn].
type Connector struct {
	// Username and Password, if both non-empty, are sent via a
	// Proxy-Authorization: Basic header.
	Username string
	Password string
}

// Connect sends a CONNECT request for host:port over conn and validates the
// proxy's response. On success, conn is ready to carry the tunneled byte
// stream with no header bytes left unconsumed in the socket buffer.
func (c *Connector) Connect(conn transport.StreamConn, host string, port uint16) error {
	req := EncodeConnectRequest(host, port, c.Username, c.Password)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("httpconnect: failed to write connect request: %w", err)
	}

	headerBlock, err := readHeaderBlock(conn)
	if err != nil {
		return fmt.Errorf("httpconnect: failed to read connect reply: %w", err)
	}
	return DecodeReply(headerBlock)
}

// readHeaderBlock reads from conn one byte at a time until it observes the
// blank-line terminator "\r\n\r\n" (or a bare "\n\n"), returning exactly the
// header bytes read. Reading byte-by-byte, rather than through a buffered
// reader, guarantees no byte belonging to the tunneled stream that follows
// the headers is ever consumed.
func readHeaderBlock(conn transport.StreamConn) ([]byte, error) {
	var block []byte
	crlfRun := 0
	b := make([]byte, 1)
	for {
		if len(block) >= maxHeaderBlock {
			return nil, fmt.Errorf("connect response header exceeds %d bytes", maxHeaderBlock)
		}
		if _, err := conn.Read(b); err != nil {
			return nil, err
		}
		block = append(block, b[0])

		switch b[0] {
		case '\r':
			// don't count towards the blank-line run by itself
		case '\n':
			crlfRun++
			if crlfRun == 2 {
				return block, nil
			}
			continue
		default:
			crlfRun = 0
			continue
		}
	}
}
