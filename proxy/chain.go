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
	"time"

	"github.com/proxytun/proxytun/transport"
)

// Chain connects through a sequence of proxies, tunneling each hop through
// the previous one, before finally reaching the destination through the
// last proxy in the chain.
type Chain struct {
	proxies []*Proxy
}

// NewChain builds a [Chain] from an ordered, non-empty list of proxies.
func NewChain(proxies []*Proxy) *Chain {
	return &Chain{proxies: proxies}
}

// Connect tunnels through every proxy in the chain in order, finally
// connecting to destHost:destPort through the last one. The timeout from
// opts applies to the whole chain, not per hop; a local variable carries
// the previous hop's stream into the next hop — no Proxy value is ever
// mutated to record chain state.
func (c *Chain) Connect(ctx context.Context, destHost string, destPort uint16, opts ...ConnectOption) (transport.StreamConn, error) {
	if len(c.proxies) == 0 {
		return nil, fmt.Errorf("proxy: chain has no proxies")
	}

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

	var stream transport.StreamConn
	for i := 0; i < len(c.proxies)-1; i++ {
		next := c.proxies[i+1]
		s, err := c.proxies[i].connect(ctx, stream, next.Host, next.Port, opts...)
		if err != nil {
			return nil, err
		}
		stream = s
	}

	last := c.proxies[len(c.proxies)-1]
	return last.connect(ctx, stream, destHost, destPort, opts...)
}
