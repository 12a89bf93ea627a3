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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Family is an address-family hint passed to [Resolver.Resolve].
type Family int

const (
	// Unspec accepts either an IPv4 or an IPv6 address.
	Unspec Family = iota
	// IPv4 requires an IPv4 address.
	IPv4
	// IPv6 requires an IPv6 address.
	IPv6
)

func (f Family) network() string {
	switch f {
	case IPv4:
		return "ip4"
	case IPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// ErrNoAddress is returned by a [Resolver] when the host has no address
// matching the requested family.
var ErrNoAddress = errors.New("no address found for host")

// Resolver maps a host name to a literal IP address of the requested family.
// The core only calls Resolve for the local-DNS (rdns=false) case; it never
// needs to resolve when remote DNS is in effect.
type Resolver interface {
	// Resolve returns the family and literal IP string of the first address
	// for host that matches familyHint (or any address, under [Unspec]).
	Resolve(ctx context.Context, host string, familyHint Family) (Family, string, error)
}

// DefaultResolver is a [Resolver] backed by [net.DefaultResolver].
var DefaultResolver Resolver = defaultResolver{}

type defaultResolver struct{}

func (defaultResolver) Resolve(ctx context.Context, host string, familyHint Family) (Family, string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, familyHint.network(), host)
	if err != nil {
		return Unspec, "", fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return IPv4, ip4.String(), nil
		}
		return IPv6, ip.String(), nil
	}
	return Unspec, "", fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// IsIPLiteral reports whether host is already a literal IP address, in which
// case no resolver call is needed or permitted.
func IsIPLiteral(host string) bool {
	return net.ParseIP(host) != nil
}
