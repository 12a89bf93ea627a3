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

// Package proxy dials a destination through a SOCKS4(a), SOCKS5, or HTTP
// CONNECT proxy, handing back a plain [transport.StreamConn] once the
// tunnel is established.
package proxy

import (
	"fmt"

	"github.com/proxytun/proxytun/transport"
	"github.com/proxytun/proxytun/transport/tls"
)

// ProxyType selects the wire protocol a [Proxy] speaks to its proxy server.
type ProxyType int

const (
	Socks4 ProxyType = iota
	Socks5
	HTTP
)

// String implements [fmt.Stringer].
func (t ProxyType) String() string {
	switch t {
	case Socks4:
		return "socks4"
	case Socks5:
		return "socks5"
	case HTTP:
		return "http"
	default:
		return fmt.Sprintf("ProxyType(%d)", int(t))
	}
}

// Credentials holds proxy authentication credentials. An empty Username
// means no credentials are offered.
type Credentials struct {
	Username string
	Password string
}

// Proxy is an immutable description of a single proxy hop. Build one with
// [New] or [FromURL]. A Proxy carries no mutable state and is safe to reuse
// concurrently across independent [Proxy.Connect] calls.
type Proxy struct {
	Type ProxyType
	Host string
	Port uint16
	Creds Credentials
	// RDNS selects the rdns policy: nil is treated as true (remote DNS,
	// the default), matching the policy fixed by the design notes. When
	// true, destination host names are sent to the proxy unresolved; when
	// false, they are resolved locally before being sent.
	RDNS *bool
	// ProxyTLS, if true, wraps the connection to the proxy itself in TLS,
	// configured by ProxyTLSOptions, before any protocol negotiation begins.
	ProxyTLS        bool
	ProxyTLSOptions []tls.ClientOption
	// Dialer opens the base connection to the proxy. Defaults to
	// [transport.TCPStreamDialer].
	Dialer transport.StreamDialer
	// Resolver resolves destination host names when the rdns policy calls
	// for local resolution. Defaults to [transport.DefaultResolver].
	Resolver transport.Resolver
}

// Option configures a [Proxy] at construction time.
type Option func(*Proxy)

// WithCredentials sets the username/password offered to the proxy.
func WithCredentials(username, password string) Option {
	return func(p *Proxy) {
		p.Creds = Credentials{Username: username, Password: password}
	}
}

// WithRDNS overrides the rdns policy. See [Proxy.RDNS].
func WithRDNS(rdns bool) Option {
	return func(p *Proxy) {
		p.RDNS = &rdns
	}
}

// WithProxyTLS wraps the connection to the proxy itself in TLS, configured
// by the given [tls.ClientOption]s (e.g. [tls.WithSNI], [tls.WithRootCAs]).
func WithProxyTLS(opts ...tls.ClientOption) Option {
	return func(p *Proxy) {
		p.ProxyTLS = true
		p.ProxyTLSOptions = opts
	}
}

// WithDialer overrides the dialer used to open the base connection to the
// proxy. Defaults to [transport.TCPStreamDialer].
func WithDialer(d transport.StreamDialer) Option {
	return func(p *Proxy) {
		p.Dialer = d
	}
}

// WithResolver overrides the resolver used for local DNS resolution when
// the rdns policy requires it. Defaults to [transport.DefaultResolver].
func WithResolver(r transport.Resolver) Option {
	return func(p *Proxy) {
		p.Resolver = r
	}
}

// New builds a [Proxy] for the given type and address.
func New(t ProxyType, host string, port uint16, opts ...Option) (*Proxy, error) {
	if host == "" {
		return nil, fmt.Errorf("proxy: host must not be empty")
	}
	p := &Proxy{Type: t, Host: host, Port: port}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// rdns resolves the effective rdns policy: nil defaults to true.
func (p *Proxy) rdns() bool {
	if p.RDNS == nil {
		return true
	}
	return *p.RDNS
}

// addr returns the proxy's "host:port" dial address.
func (p *Proxy) addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
