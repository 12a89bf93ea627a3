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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/proxytun/proxytun/httpconnect"
	"github.com/proxytun/proxytun/internal/ddltimer"
	"github.com/proxytun/proxytun/transport"
	"github.com/proxytun/proxytun/transport/socks4"
	"github.com/proxytun/proxytun/transport/socks5"
	"github.com/proxytun/proxytun/transport/tls"
)

// DefaultTimeout is the timeout applied to the whole Connect call when the
// caller does not pass [WithTimeout]. The effective deadline is the earlier
// of now plus the timeout and the context's own deadline, if it has one.
const DefaultTimeout = 60 * time.Second

// ConnectOption configures a single [Proxy.Connect] or [Chain.Connect] call.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	timeout        time.Duration
	destTLS        bool
	destTLSOptions []tls.ClientOption
}

// WithDestTLS wraps the connection to the final destination in TLS, after
// the proxy tunnel has been established, configured by the given
// [tls.ClientOption]s (e.g. [tls.WithSNI], [tls.WithRootCAs]).
func WithDestTLS(opts ...tls.ClientOption) ConnectOption {
	return func(c *connectConfig) {
		c.destTLS = true
		c.destTLSOptions = opts
	}
}

// WithTimeout overrides [DefaultTimeout] for a single Connect call.
func WithTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.timeout = d
	}
}

// Connect dials the proxy, negotiates the tunnel, and returns a stream
// ready to carry traffic to destHost:destPort.
func (p *Proxy) Connect(ctx context.Context, destHost string, destPort uint16, opts ...ConnectOption) (transport.StreamConn, error) {
	return p.connect(ctx, nil, destHost, destPort, opts...)
}

// connect implements the Engine from SPEC_FULL.md §4.E. forward, when
// non-nil, is an already-tunneled stream from a previous chain hop; the
// base-dial step is skipped and its errors are never classified as
// ProxyConnectionError, since the proxy itself was never dialed here.
func (p *Proxy) connect(ctx context.Context, forward transport.StreamConn, destHost string, destPort uint16, opts ...ConnectOption) (transport.StreamConn, error) {
	cfg := connectConfig{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	deadline := time.Now().Add(cfg.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	timer := ddltimer.New()
	timer.SetDeadline(deadline)
	defer timer.Stop()

	var mu sync.Mutex
	var stream transport.StreamConn
	var timedOut, closed bool
	// closeStream closes the current stream at most once, whichever of the
	// watcher and the error paths below gets there first.
	closeStream := func() {
		mu.Lock()
		s, already := stream, closed
		closed = closed || s != nil
		mu.Unlock()
		if s != nil && !already {
			s.Close()
		}
	}
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-timer.Timeout():
			mu.Lock()
			timedOut = true
			mu.Unlock()
			closeStream()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	setStream := func(s transport.StreamConn) {
		mu.Lock()
		stream = s
		mu.Unlock()
	}
	hasTimedOut := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return timedOut
	}

	mapErr := func(err error, atDialStep bool) error {
		if hasTimedOut() {
			return &ProxyTimeoutError{Timeout: cfg.timeout.String()}
		}
		if atDialStep {
			return &ProxyConnectionError{Addr: p.addr(), Err: err}
		}
		if isReplyError(err) {
			return wrapReplyError(err)
		}
		return err
	}

	s := forward
	if s == nil {
		dialed, err := p.dialer().DialStream(ctx, p.addr())
		if err != nil {
			return nil, mapErr(err, true)
		}
		s = dialed
	}
	setStream(s)

	if p.ProxyTLS {
		wrapped, err := tls.WrapConn(ctx, s, p.Host, p.ProxyTLSOptions...)
		if err != nil {
			closeStream()
			return nil, mapErr(err, false)
		}
		s = wrapped
		setStream(s)
	}

	if err := p.runConnector(ctx, s, destHost, destPort); err != nil {
		closeStream()
		return nil, mapErr(err, false)
	}

	if cfg.destTLS {
		wrapped, err := tls.WrapConn(ctx, s, destHost, cfg.destTLSOptions...)
		if err != nil {
			closeStream()
			return nil, mapErr(err, false)
		}
		s = wrapped
		setStream(s)
	}

	return s, nil
}

func (p *Proxy) dialer() transport.StreamDialer {
	if p.Dialer != nil {
		return p.Dialer
	}
	return &transport.TCPStreamDialer{}
}

func (p *Proxy) resolver() transport.Resolver {
	if p.Resolver != nil {
		return p.Resolver
	}
	return transport.DefaultResolver
}

func (p *Proxy) runConnector(ctx context.Context, stream transport.StreamConn, destHost string, destPort uint16) error {
	switch p.Type {
	case Socks5:
		c := &socks5.Connector{
			Username: p.Creds.Username,
			Password: p.Creds.Password,
			RDNS:     p.rdns(),
			Resolver: p.resolver(),
		}
		return c.Connect(ctx, stream, destHost, destPort)
	case Socks4:
		c := &socks4.Connector{
			UserID:   p.Creds.Username,
			RDNS:     p.rdns(),
			Resolver: p.resolver(),
		}
		return c.Connect(ctx, stream, destHost, destPort)
	case HTTP:
		c := &httpconnect.Connector{
			Username: p.Creds.Username,
			Password: p.Creds.Password,
		}
		return c.Connect(stream, destHost, destPort)
	default:
		return fmt.Errorf("proxy: unsupported proxy type %v", p.Type)
	}
}

func isReplyError(err error) bool {
	var s5 *socks5.ReplyError
	var s4 *socks4.ReplyError
	var hc *httpconnect.ReplyError
	return errors.As(err, &s5) || errors.As(err, &s4) || errors.As(err, &hc)
}

func replyCode(err error) int {
	var s5 *socks5.ReplyError
	if errors.As(err, &s5) {
		return s5.Code
	}
	var s4 *socks4.ReplyError
	if errors.As(err, &s4) {
		return s4.Code
	}
	var hc *httpconnect.ReplyError
	if errors.As(err, &hc) {
		return hc.Code
	}
	return 0
}
