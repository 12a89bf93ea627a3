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

// Package tls wraps a [transport.StreamConn] in a TLS client handshake, for
// both proxy-TLS (the hop to the proxy server itself) and destination-TLS
// (the hop from the proxy to the final destination, tunneled through it).
package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/proxytun/proxytun/transport"
)

// StreamDialer is a [transport.StreamDialer] that wraps the connections from
// the base dialer with TLS. Useful for building a chain such as
// TCP -> TLS -> SOCKS5, where the TLS hop terminates at the proxy itself.
type StreamDialer struct {
	dialer  transport.StreamDialer
	options []ClientOption
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] that wraps connections from
// baseDialer with TLS configured by the given options.
func NewStreamDialer(baseDialer transport.StreamDialer, options ...ClientOption) (*StreamDialer, error) {
	if baseDialer == nil {
		return nil, errors.New("base dialer must not be nil")
	}
	return &StreamDialer{baseDialer, options}, nil
}

// DialStream implements [transport.StreamDialer].
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	innerConn, err := d.dialer.DialStream(ctx, remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := WrapConn(ctx, innerConn, host, d.options...)
	if err != nil {
		innerConn.Close()
		return nil, err
	}
	return conn, nil
}

// streamConn wraps a [tls.Conn] to provide a [transport.StreamConn] interface.
type streamConn struct {
	*tls.Conn
	innerConn transport.StreamConn
}

var _ transport.StreamConn = (*streamConn)(nil)

func (c streamConn) CloseWrite() error {
	tlsErr := c.Conn.CloseWrite()
	return errors.Join(tlsErr, c.innerConn.CloseWrite())
}

func (c streamConn) CloseRead() error {
	return c.innerConn.CloseRead()
}

func normalizeHost(host string) string {
	return strings.ToLower(host)
}

// ClientConfig encodes the parameters for a TLS client handshake.
type ClientConfig struct {
	// ServerName for the Server Name Indication (SNI).
	ServerName string
	// CertificateName is the hostname used for certificate validation.
	CertificateName string
	// NextProtos is the protocol id list for ALPN.
	NextProtos []string
	// SessionCache enables session resumption.
	SessionCache tls.ClientSessionCache
	// RootCAs overrides the system trust store used for certificate
	// verification. Defaults to the system roots when nil.
	RootCAs *x509.CertPool
}

func (cfg *ClientConfig) toStdConfig() *tls.Config {
	return &tls.Config{
		ServerName:         cfg.ServerName,
		NextProtos:         cfg.NextProtos,
		ClientSessionCache: cfg.SessionCache,
		// InsecureSkipVerify disables the default validation; VerifyConnection
		// below replicates it against CertificateName instead of ServerName,
		// since the two may differ (e.g. WithSNI spoofing).
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			opts := x509.VerifyOptions{
				DNSName:       cfg.CertificateName,
				Roots:         cfg.RootCAs,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}

// ClientOption configures the TLS client parameters used for a given host.
type ClientOption func(serverName string, config *ClientConfig)

// WrapConn wraps conn in a TLS client handshake to serverName, returning a
// [transport.StreamConn] once the handshake completes. If the context
// carries a [ClientTrace] (see [WithClientTrace]), its hooks are invoked
// around the handshake.
func WrapConn(ctx context.Context, conn transport.StreamConn, serverName string, options ...ClientOption) (transport.StreamConn, error) {
	cfg := ClientConfig{ServerName: serverName, CertificateName: serverName}
	normName := normalizeHost(serverName)
	for _, option := range options {
		option(normName, &cfg)
	}
	tlsConn := tls.Client(conn, cfg.toStdConfig())

	trace := ClientTraceFromContext(ctx)
	if trace != nil && trace.HandshakeStart != nil {
		trace.HandshakeStart()
	}
	err := tlsConn.HandshakeContext(ctx)
	if trace != nil && trace.HandshakeDone != nil {
		trace.HandshakeDone(tlsConn.ConnectionState(), err)
	}
	if err != nil {
		return nil, err
	}
	return streamConn{tlsConn, conn}, nil
}

// WithSNI sets the host name sent for Server Name Indication. If absent,
// defaults to the dialed hostname. This only changes what is sent in the
// SNI extension, not the name used for certificate verification.
func WithSNI(hostName string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.ServerName = hostName
	}
}

// IfHost applies option only when host matches matchHost.
func IfHost(matchHost string, option ClientOption) ClientOption {
	matchHost = normalizeHost(matchHost)
	return func(host string, config *ClientConfig) {
		if matchHost != "" && matchHost != host {
			return
		}
		option(host, config)
	}
}

// WithALPN sets the protocol name list for Application-Layer Protocol
// Negotiation.
func WithALPN(protocolNameList []string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.NextProtos = protocolNameList
	}
}

// WithSessionCache sets the session cache used for TLS session resumption.
func WithSessionCache(sessionCache tls.ClientSessionCache) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.SessionCache = sessionCache
	}
}

// WithCertificateName sets the hostname used for certificate verification.
// If absent, defaults to the dialed hostname.
func WithCertificateName(hostname string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.CertificateName = hostname
	}
}

// WithRootCAs overrides the trust store used to verify the peer
// certificate, instead of the system roots. Useful for pinning a private
// or self-signed CA.
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.RootCAs = pool
	}
}
