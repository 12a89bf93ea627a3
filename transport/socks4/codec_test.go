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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeConnectRequestIPv4(t *testing.T) {
	req, err := EncodeConnectRequest(net.IPv4(1, 2, 3, 4), "", 80, "")
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x01, 0x00, 0x50, 1, 2, 3, 4, 0x00}, req)
}

func TestEncodeConnectRequestWithUserID(t *testing.T) {
	req, err := EncodeConnectRequest(net.IPv4(1, 2, 3, 4), "", 80, "bob")
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x01, 0x00, 0x50, 1, 2, 3, 4, 'b', 'o', 'b', 0x00}, req)
}

func TestEncodeConnectRequestSocks4a(t *testing.T) {
	req, err := EncodeConnectRequest(nil, "example.com", 443, "")
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x01, 0x01, 0xBB, 0, 0, 0, 1, 0x00}, req[:9])
	require.Equal(t, "example.com\x00", string(req[9:]))
}

func TestEncodeConnectRequestNonIPv4(t *testing.T) {
	_, err := EncodeConnectRequest(net.ParseIP("::1"), "", 80, "")
	require.Error(t, err)
}

func TestDecodeConnectReply(t *testing.T) {
	require.NoError(t, DecodeConnectReply([]byte{0x00, byte(ReplyGranted), 0, 0, 0, 0, 0, 0}))

	err := DecodeConnectReply([]byte{0x00, byte(ReplyRejected), 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
	require.Equal(t, int(ReplyRejected), re.Code)

	require.Error(t, DecodeConnectReply([]byte{0x00, byte(ReplyGranted)}))
}

func TestDecodeConnectReplyInvalidVersionByte(t *testing.T) {
	err := DecodeConnectReply([]byte{0xFF, byte(ReplyGranted), 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
}
