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
	"crypto/tls"
)

type contextKey struct{}

// ClientTrace hooks into the lifecycle of a client TLS handshake performed
// by [WrapConn], for logging or metrics.
type ClientTrace struct {
	HandshakeStart func()
	HandshakeDone  func(state tls.ConnectionState, err error)
}

var tlsClientTraceKey = contextKey{}

// WithClientTrace adds TLS trace hooks to the context.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, tlsClientTraceKey, trace)
}

// ClientTraceFromContext retrieves the TLS trace hooks from the context, if any.
func ClientTraceFromContext(ctx context.Context) *ClientTrace {
	if trace, ok := ctx.Value(tlsClientTraceKey).(*ClientTrace); ok {
		return trace
	}
	return nil
}
