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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeConnectRequest(t *testing.T) {
	req := string(EncodeConnectRequest("example.com", 443, "", ""))
	require.Equal(t,
		"CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\nUser-Agent: "+defaultUserAgent+"\r\n\r\n",
		req)
}

func TestEncodeConnectRequestWithAuth(t *testing.T) {
	req := string(EncodeConnectRequest("example.com", 443, "user", "pass"))
	require.True(t, strings.Contains(req, "User-Agent: "+defaultUserAgent+"\r\n"))
	require.True(t, strings.Contains(req, "Proxy-Authorization: Basic dXNlcjpwYXNz\r\n"))
	require.True(t, strings.HasSuffix(req, "\r\n\r\n"))
}

func TestDecodeReplySuccess(t *testing.T) {
	err := DecodeReply([]byte("HTTP/1.1 200 Connection established\r\n\r\n"))
	require.NoError(t, err)
}

func TestDecodeReplyFailure(t *testing.T) {
	err := DecodeReply([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	require.Error(t, err)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 407, re.Code)
}

func TestDecodeReplyOnlyExactly200Succeeds(t *testing.T) {
	err := DecodeReply([]byte("HTTP/1.1 201 Created\r\n\r\n"))
	require.Error(t, err)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 201, re.Code)
}

func TestDecodeReplyMalformed(t *testing.T) {
	err := DecodeReply([]byte("garbage\r\n\r\n"))
	require.Error(t, err)

	err = DecodeReply([]byte("HTTP/1.1 abc OK\r\n\r\n"))
	require.Error(t, err)
}
