// Package whois resolves an autonomous-system number to the CIDR blocks
// routed to it, using the plain-text WHOIS protocol against a routing
// registry.
package whois

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultServer is the routing registry queried for origin routes.
const DefaultServer = "whois.radb.net:43"

var routeLine = regexp.MustCompile(`^\s*route:\s+(\S+)`)

// Client performs origin-route lookups over WHOIS (TCP port 43).
type Client struct {
	server  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient returns a client for the given "host:port" registry endpoint.
// Empty server selects DefaultServer.
func NewClient(server string, timeout time.Duration) *Client {
	if server == "" {
		server = DefaultServer
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		server:  server,
		timeout: timeout,
		logger:  log.With().Str("component", "whois").Logger(),
	}
}

// RoutesForAS queries the registry for every route object whose origin is the
// given AS number and returns the CIDR strings. A registry that cannot be
// reached yields an empty list, not an error: no routes simply means nothing
// to scan.
func (c *Client) RoutesForAS(asNumber string) []string {
	query := normalizeAS(asNumber)

	conn, err := net.DialTimeout("tcp", c.server, c.timeout)
	if err != nil {
		c.logger.Warn().Str("server", c.server).Err(err).Msg("whois lookup failed, treating as zero routes")
		return nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "-i origin %s\r\n", query); err != nil {
		c.logger.Warn().Err(err).Msg("whois request failed, treating as zero routes")
		return nil
	}

	routes := ParseRoutes(conn)
	c.logger.Debug().Str("as", query).Int("routes", len(routes)).Msg("whois lookup complete")
	return routes
}

// ParseRoutes extracts the CIDR of every "route:" attribute line from a WHOIS
// response stream.
func ParseRoutes(r io.Reader) []string {
	var routes []string
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		if m := routeLine.FindStringSubmatch(scan.Text()); m != nil {
			routes = append(routes, m[1])
		}
	}
	return routes
}

// normalizeAS accepts "64500" or "AS64500" and returns the registry form.
func normalizeAS(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToUpper(s), "AS") {
		return "AS" + s
	}
	return "AS" + s[2:]
}
