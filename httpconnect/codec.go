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

// Package httpconnect implements the HTTP CONNECT tunneling method as a pure
// codec plus a [Connector] that drives it against a [transport.StreamConn].
package httpconnect

import (
	"encoding/base64"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// defaultUserAgent identifies this module in the CONNECT request, mirroring
// how the Python reference client reports its language runtime and version.
var defaultUserAgent = fmt.Sprintf("Go/%s proxytun/0.1.0", strings.TrimPrefix(runtime.Version(), "go"))

// ReplyError is raised when the proxy's response to a CONNECT request is
// malformed or carries any status other than 200.
type ReplyError struct {
	Msg  string
	Code int
}

func (e *ReplyError) Error() string { return e.Msg }

// EncodeConnectRequest builds the CONNECT request line and headers for
// host:port. When both username and password are non-empty, a
// Proxy-Authorization: Basic header is included.
func EncodeConnectRequest(host string, port uint16, username, password string) []byte {
	authority := host + ":" + strconv.Itoa(int(port))
	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\n", authority)
	fmt.Fprintf(&b, "Host: %s\r\n", authority)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", defaultUserAgent)
	if username != "" && password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", creds)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// DecodeReply parses the raw header block of a CONNECT response (the status
// line plus any header lines, CRLF-separated, as returned by readHeaderBlock)
// and returns an error if the status is not 200.
func DecodeReply(headerBlock []byte) error {
	text := string(headerBlock)
	lineEnd := strings.IndexAny(text, "\r\n")
	if lineEnd < 0 {
		return &ReplyError{Msg: fmt.Sprintf("malformed status line: %q", text)}
	}
	statusLine := text[:lineEnd]

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return &ReplyError{Msg: fmt.Sprintf("malformed status line: %q", statusLine)}
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return &ReplyError{Msg: fmt.Sprintf("malformed status code in line: %q", statusLine)}
	}
	if code != 200 {
		reason := ""
		if len(parts) == 3 {
			reason = parts[2]
		}
		return &ReplyError{Msg: fmt.Sprintf("proxy CONNECT failed: %d %s", code, reason), Code: code}
	}
	return nil
}
