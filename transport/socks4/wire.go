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

// Package socks4 implements the SOCKS4 and SOCKS4a wire protocols as a pure
// codec plus a [Connector] that drives the codec against a
// [transport.StreamConn].
package socks4

import "strconv"

const (
	version     = 0x04
	commandConn = 0x01
)

// ReplyCode is the second byte (CD) of a SOCKS4 reply.
type ReplyCode byte

const (
	ReplyGranted          ReplyCode = 0x5A
	ReplyRejected         ReplyCode = 0x5B
	ReplyIdentdUnreachable ReplyCode = 0x5C
	ReplyIdentdMismatch   ReplyCode = 0x5D
)

var _ error = ReplyCode(0)

// Error returns a human-readable description of the reply code.
func (c ReplyCode) Error() string {
	switch c {
	case ReplyRejected:
		return "request rejected or failed"
	case ReplyIdentdUnreachable:
		return "request rejected: client is not running identd"
	case ReplyIdentdMismatch:
		return "request rejected: client's identd could not confirm the user ID"
	default:
		return "unknown reply code " + strconv.Itoa(int(c))
	}
}

// Code implements the engine's coded-error boundary.
func (c ReplyCode) Code() int { return int(c) }
