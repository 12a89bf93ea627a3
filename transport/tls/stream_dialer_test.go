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

package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proxytun/proxytun/transport"
)

func selfSignedCert(t *testing.T, commonName string) tls.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     []string{commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestWrapConnHandshake(t *testing.T) {
	cert := selfSignedCert(t, "example.com")
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	serverDone := make(chan error, 1)
	go func() {
		srv := tls.Server(server, &tls.Config{Certificates: []tls.Certificate{cert}})
		serverDone <- srv.HandshakeContext(context.Background())
	}()

	pool := x509.NewCertPool()
	pool.AddCert(mustParseCert(t, cert))
	conn, err := WrapConn(context.Background(), client, "example.com", WithRootCAs(pool))
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	tlsConn, ok := conn.(streamConn)
	require.True(t, ok)
	require.True(t, tlsConn.ConnectionState().HandshakeComplete)
}

func TestWrapConnCertificateNameMismatch(t *testing.T) {
	cert := selfSignedCert(t, "example.com")
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	go func() {
		// The client rejects the certificate without reading the rest of the
		// server's flight, and both ends then block writing to the unbuffered
		// pipe. The timeout closes the server end so the client can return.
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		srv := tls.Server(server, &tls.Config{Certificates: []tls.Certificate{cert}})
		srv.HandshakeContext(ctx)
	}()

	pool := x509.NewCertPool()
	pool.AddCert(mustParseCert(t, cert))
	_, err := WrapConn(context.Background(), client, "not-example.com", WithRootCAs(pool))
	require.Error(t, err)
}

func TestWrapConnWithSNI(t *testing.T) {
	cert := selfSignedCert(t, "example.com")
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	var gotServerName string
	go func() {
		srv := tls.Server(server, &tls.Config{
			Certificates: []tls.Certificate{cert},
			GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
				gotServerName = hello.ServerName
				return nil, nil
			},
		})
		srv.HandshakeContext(context.Background())
	}()

	pool := x509.NewCertPool()
	pool.AddCert(mustParseCert(t, cert))
	_, err := WrapConn(context.Background(), client, "example.com",
		WithSNI("decoy.example.com"), WithCertificateName("example.com"), WithRootCAs(pool))
	require.NoError(t, err)
	require.Equal(t, "decoy.example.com", gotServerName)
}

func mustParseCert(t *testing.T, cert tls.Certificate) *x509.Certificate {
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}
