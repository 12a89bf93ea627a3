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

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	xnetproxy "golang.org/x/net/proxy"
)

func init() {
	factory := func(u *url.URL, forward xnetproxy.Dialer) (xnetproxy.Dialer, error) {
		p, err := FromURL(u.String())
		if err != nil {
			return nil, err
		}
		return &xnetDialer{proxy: p}, nil
	}
	xnetproxy.RegisterDialerType("http", factory)
	xnetproxy.RegisterDialerType("socks4", factory)
	xnetproxy.RegisterDialerType("socks4a", factory)
	xnetproxy.RegisterDialerType("socks5", factory)
}

// xnetDialer adapts a [Proxy] to [golang.org/x/net/proxy.ContextDialer], so
// any code that consumes the x/net/proxy registry (e.g. via
// [xnetproxy.FromEnvironment] or http.Transport.Proxy wiring) can tunnel
// through this package's protocol implementations.
type xnetDialer struct {
	proxy *Proxy
}

var (
	_ xnetproxy.Dialer        = (*xnetDialer)(nil)
	_ xnetproxy.ContextDialer = (*xnetDialer)(nil)
)

func (d *xnetDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *xnetDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("proxy: unsupported network %q", network)
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid port %q: %w", portStr, err)
	}
	return d.proxy.Connect(ctx, host, uint16(port))
}
