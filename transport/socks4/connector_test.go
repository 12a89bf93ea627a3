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
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxytun/proxytun/transport"
)

type fakeResolver struct {
	host string
	ip   string
}

func (r *fakeResolver) Resolve(ctx context.Context, host string, _ transport.Family) (transport.Family, string, error) {
	r.host = host
	return transport.IPv4, r.ip, nil
}

func TestConnectorIPLiteral(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		c := &Connector{RDNS: true}
		done <- c.Connect(context.Background(), client, "1.2.3.4", 80)
	}()

	req := make([]byte, 9)
	_, err := io.ReadFull(server, req)
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x01, 0x00, 0x50, 1, 2, 3, 4, 0x00}, req)

	_, err = server.Write([]byte{0x00, byte(ReplyGranted), 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestConnectorSocks4aRemoteDNS(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		c := &Connector{RDNS: true}
		done <- c.Connect(context.Background(), client, "example.com", 80)
	}()

	req := make([]byte, 9+len("example.com")+1)
	_, err := io.ReadFull(server, req)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 1}, req[4:8])
	require.Equal(t, "example.com\x00", string(req[9:]))

	_, err = server.Write([]byte{0x00, byte(ReplyGranted), 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestConnectorLocalResolution(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	resolver := &fakeResolver{ip: "9.9.9.9"}
	done := make(chan error, 1)
	go func() {
		c := &Connector{RDNS: false, Resolver: resolver}
		done <- c.Connect(context.Background(), client, "example.com", 80)
	}()

	req := make([]byte, 9)
	_, err := io.ReadFull(server, req)
	require.NoError(t, err)
	require.Equal(t, net.IPv4(9, 9, 9, 9).To4(), net.IP(req[4:8]))
	require.Equal(t, "example.com", resolver.host)

	_, err = server.Write([]byte{0x00, byte(ReplyGranted), 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestConnectorRejected(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		c := &Connector{RDNS: true}
		done <- c.Connect(context.Background(), client, "1.2.3.4", 80)
	}()

	req := make([]byte, 9)
	_, err := io.ReadFull(server, req)
	require.NoError(t, err)

	_, err = server.Write([]byte{0x00, byte(ReplyRejected), 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)

	err = <-done
	require.Error(t, err)
}
