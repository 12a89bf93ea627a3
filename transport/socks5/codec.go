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
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// ReplyError is raised by the codec when a reply frame is malformed or
// carries a non-success status. Connectors surface it unchanged; the
// engine boundary converts it to a ProxyError.
type ReplyError struct {
	Msg  string
	Code int
}

func (e *ReplyError) Error() string { return e.Msg }

// EncodeMethodRequest builds the method-negotiation request. If both
// username and password are non-empty, the client offers
// [NoAuth, UsernamePassword]; otherwise it offers [NoAuth] only.
func EncodeMethodRequest(username, password string) []byte {
	if username != "" && password != "" {
		return []byte{0x05, 0x02, byte(AuthMethodNoAuth), byte(AuthMethodUsernamePassword)}
	}
	return []byte{0x05, 0x01, byte(AuthMethodNoAuth)}
}

// DecodeMethodReply parses the 2-byte method-selection reply.
func DecodeMethodReply(data []byte) (AuthMethod, error) {
	if len(data) != 2 {
		return 0, &ReplyError{Msg: "invalid method reply length"}
	}
	if data[0] != 0x05 {
		return 0, &ReplyError{Msg: fmt.Sprintf("invalid protocol version %#02x", data[0])}
	}
	method := AuthMethod(data[1])
	if method == AuthMethodNoAcceptable {
		return method, &ReplyError{Msg: "no acceptable authentication methods", Code: int(method)}
	}
	return method, nil
}

// EncodeAuthRequest builds the username/password sub-auth request defined by
// RFC 1929. Usernames and passwords must be 1-255 bytes once UTF-8 encoded.
func EncodeAuthRequest(username, password string) ([]byte, error) {
	u, p := []byte(username), []byte(password)
	if len(u) == 0 || len(u) > 255 {
		return nil, errors.New("socks5: username must be 1-255 bytes")
	}
	if len(p) == 0 || len(p) > 255 {
		return nil, errors.New("socks5: password must be 1-255 bytes")
	}
	b := make([]byte, 0, 3+len(u)+len(p))
	b = append(b, 0x01, byte(len(u)))
	b = append(b, u...)
	b = append(b, byte(len(p)))
	b = append(b, p...)
	return b, nil
}

// DecodeAuthReply parses the 2-byte sub-auth reply.
func DecodeAuthReply(data []byte) error {
	if len(data) != 2 {
		return &ReplyError{Msg: "invalid auth reply length"}
	}
	if data[0] != 0x01 {
		return &ReplyError{Msg: fmt.Sprintf("invalid auth version %#02x", data[0])}
	}
	if data[1] != 0x00 {
		return &ReplyError{Msg: "authentication failed", Code: int(data[1])}
	}
	return nil
}

// EncodeConnectRequest builds a CONNECT request for the given destination.
// host may be an IPv4 literal, an IPv6 literal, or a domain name (1-255 bytes).
func EncodeConnectRequest(host string, port uint16) ([]byte, error) {
	b := []byte{0x05, 0x01, 0x00}
	b, err := appendAddress(b, host)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint16(b, port), nil
}

func appendAddress(b []byte, host string) ([]byte, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			b = append(b, addrTypeIPv4)
			return append(b, ip4...), nil
		}
		b = append(b, addrTypeIPv6)
		return append(b, ip.To16()...), nil
	}
	if len(host) == 0 || len(host) > 255 {
		return nil, fmt.Errorf("socks5: domain name length %d out of range", len(host))
	}
	b = append(b, addrTypeDomainName, byte(len(host)))
	return append(b, host...), nil
}

// AddressType identifies the BND.ADDR encoding in a CONNECT reply, so the
// connector knows how many more bytes to read after the initial 4-byte frame.
type AddressType = byte

// TailLen returns how many additional bytes the connector must read after
// the initial 4-byte header, given the ATYP byte. For domain names, the
// connector must first read one more byte (the length prefix) before it
// knows the remaining tail length; hasLenPrefix signals that case.
func TailLen(atyp AddressType) (tail int, hasLenPrefix bool, err error) {
	switch atyp {
	case addrTypeIPv4:
		return 4 + 2, false, nil
	case addrTypeIPv6:
		return 16 + 2, false, nil
	case addrTypeDomainName:
		return 0, true, nil
	default:
		return 0, false, &ReplyError{Msg: fmt.Sprintf("invalid address type: %#02x", atyp)}
	}
}

// DecodeConnectReply validates a complete CONNECT reply frame (header +
// address + port) and returns an error if REP indicates failure.
func DecodeConnectReply(frame []byte) error {
	if len(frame) < 4 {
		return &ReplyError{Msg: "connect reply too short"}
	}
	if frame[0] != 0x05 {
		return &ReplyError{Msg: fmt.Sprintf("invalid protocol version %#02x", frame[0])}
	}
	rep := ReplyCode(frame[1])
	if rep != ReplySucceeded {
		return &ReplyError{Msg: rep.Error(), Code: int(rep)}
	}
	return nil
}
