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
	"encoding/binary"
	"fmt"
	"net"
)

// ReplyError is raised by the codec when a reply frame is malformed or
// carries a non-success status.
type ReplyError struct {
	Msg  string
	Code int
}

func (e *ReplyError) Error() string { return e.Msg }

// invalidPseudoIP is the SOCKS4a sentinel address: 0.0.0.x with x != 0,
// signalling that the request carries a trailing domain name instead of
// a resolved IPv4 address.
var invalidPseudoIP = [4]byte{0, 0, 0, 1}

// EncodeConnectRequest builds a SOCKS4/4a CONNECT request. ip is the
// destination's resolved IPv4 address; when ip is nil, the SOCKS4a
// extension is used instead: the pseudo-IP 0.0.0.1 is sent along with the
// domain name, null-terminated, after the user ID field.
func EncodeConnectRequest(ip net.IP, domain string, port uint16, userID string) ([]byte, error) {
	b := make([]byte, 0, 9+len(userID)+len(domain)+1)
	b = append(b, version, commandConn)
	b = binary.BigEndian.AppendUint16(b, port)

	if ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("socks4: destination address %s is not IPv4", ip)
		}
		b = append(b, ip4...)
		b = append(b, userID...)
		b = append(b, 0x00)
		return b, nil
	}

	if len(domain) == 0 || len(domain) > 255 {
		return nil, fmt.Errorf("socks4: domain name length %d out of range", len(domain))
	}
	b = append(b, invalidPseudoIP[:]...)
	b = append(b, userID...)
	b = append(b, 0x00)
	b = append(b, domain...)
	b = append(b, 0x00)
	return b, nil
}

// DecodeConnectReply validates the fixed 8-byte SOCKS4 reply frame.
func DecodeConnectReply(frame []byte) error {
	if len(frame) != 8 {
		return &ReplyError{Msg: "invalid connect reply length"}
	}
	if frame[0] != 0x00 {
		return &ReplyError{Msg: fmt.Sprintf("invalid reply version byte %#02x", frame[0])}
	}
	code := ReplyCode(frame[1])
	if code != ReplyGranted {
		return &ReplyError{Msg: code.Error(), Code: int(code)}
	}
	return nil
}
