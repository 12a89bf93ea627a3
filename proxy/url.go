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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// FromURL parses rawURL of the form "scheme://[user[:pass]@]host:port" into
// a [Proxy]. scheme must be one of "http", "socks4", "socks4a", or "socks5"
// (case-insensitive); "socks4a" selects [Socks4] with the rdns policy
// forced to true. Port is mandatory. Userinfo, if present, is
// percent-decoded by [net/url] and becomes the proxy's credentials.
func FromURL(rawURL string, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: failed to parse URL: %w", err)
	}

	t, forceRDNS, err := parseScheme(u.Scheme)
	if err != nil {
		return nil, err
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, fmt.Errorf("proxy: missing port in %q: %w", u.Host, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid port %q: %w", portStr, err)
	}

	allOpts := make([]Option, 0, len(opts)+2)
	if u.User != nil {
		username := u.User.Username()
		password, _ := u.User.Password()
		allOpts = append(allOpts, WithCredentials(username, password))
	}
	if forceRDNS {
		allOpts = append(allOpts, WithRDNS(true))
	}
	allOpts = append(allOpts, opts...)

	return New(t, host, uint16(port), allOpts...)
}

func parseScheme(scheme string) (t ProxyType, forceRDNS bool, err error) {
	switch strings.ToLower(scheme) {
	case "http":
		return HTTP, false, nil
	case "socks4":
		return Socks4, false, nil
	case "socks4a":
		return Socks4, true, nil
	case "socks5":
		return Socks5, false, nil
	default:
		return 0, false, fmt.Errorf("proxy: unsupported scheme %q", scheme)
	}
}
