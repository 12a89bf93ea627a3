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

package proxy

import "fmt"

// ProxyConnectionError is returned when the base TCP connection to the
// proxy server itself could not be established.
type ProxyConnectionError struct {
	Addr string
	Err  error
}

func (e *ProxyConnectionError) Error() string {
	return fmt.Sprintf("could not connect to proxy %s: %v", e.Addr, e.Err)
}

func (e *ProxyConnectionError) Unwrap() error { return e.Err }

// ProxyTimeoutError is returned when the deadline for the whole Connect
// call elapses at any step.
type ProxyTimeoutError struct {
	Timeout string
}

func (e *ProxyTimeoutError) Error() string {
	return fmt.Sprintf("proxy connection timed out: %s", e.Timeout)
}

// ProxyError is returned when the proxy server itself refused or failed to
// establish the tunnel, wrapping the underlying protocol-level reply error.
type ProxyError struct {
	// Code is the numeric reply/status code from the protocol, when one
	// was available (e.g. the SOCKS REP byte or the HTTP status code).
	Code int
	Err  error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy refused connection (code %d): %v", e.Code, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// wrapReplyError converts a connector-level reply error into the public
// ProxyError, recovering its numeric code from the protocol-specific
// *ReplyError shape via replyCode.
func wrapReplyError(err error) *ProxyError {
	return &ProxyError{Code: replyCode(err), Err: err}
}
