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

// Package socks5 implements the SOCKS5 wire protocol (RFC 1928) and its
// username/password authentication extension (RFC 1929) as a pure codec
// plus a [Connector] that drives the codec against a [transport.StreamConn].
package socks5

import "strconv"

// SOCKS5 address types, from https://datatracker.ietf.org/doc/html/rfc1928#section-5.
const (
	addrTypeIPv4       = 0x01
	addrTypeDomainName = 0x03
	addrTypeIPv6       = 0x04
)

// AuthMethod is a SOCKS5 authentication method identifier, from
// https://datatracker.ietf.org/doc/html/rfc1928#section-3.
type AuthMethod byte

const (
	AuthMethodNoAuth           AuthMethod = 0x00
	AuthMethodUsernamePassword AuthMethod = 0x02
	AuthMethodNoAcceptable     AuthMethod = 0xFF
)

// ReplyCode is the REP field of a SOCKS5 CONNECT reply, as enumerated in
// https://datatracker.ietf.org/doc/html/rfc1928#section-6.
type ReplyCode byte

const (
	ReplySucceeded               ReplyCode = 0x00
	ReplyGeneralFailure          ReplyCode = 0x01
	ReplyNotAllowedByRuleset     ReplyCode = 0x02
	ReplyNetworkUnreachable      ReplyCode = 0x03
	ReplyHostUnreachable         ReplyCode = 0x04
	ReplyConnectionRefused       ReplyCode = 0x05
	ReplyTTLExpired              ReplyCode = 0x06
	ReplyCommandNotSupported     ReplyCode = 0x07
	ReplyAddressTypeUnsupported  ReplyCode = 0x08
)

var _ error = ReplyCode(0)

// Error returns a human-readable description of the reply code, based on the SOCKS5 RFC.
func (c ReplyCode) Error() string {
	switch c {
	case ReplyGeneralFailure:
		return "general SOCKS server failure"
	case ReplyNotAllowedByRuleset:
		return "connection not allowed by ruleset"
	case ReplyNetworkUnreachable:
		return "network unreachable"
	case ReplyHostUnreachable:
		return "host unreachable"
	case ReplyConnectionRefused:
		return "connection refused"
	case ReplyTTLExpired:
		return "TTL expired"
	case ReplyCommandNotSupported:
		return "command not supported"
	case ReplyAddressTypeUnsupported:
		return "address type not supported"
	default:
		return "unknown reply code " + strconv.Itoa(int(c))
	}
}

// Code implements the engine's coded-error boundary: the numeric REP value.
func (c ReplyCode) Code() int { return int(c) }
