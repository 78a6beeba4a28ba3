// Package scanner probes batches of addresses for an SSH host key matching a
// fingerprint, bounded by the process's file-descriptor budget.
package scanner

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yuppity/sshd-finder/pkg/handshake"
)

// Config carries everything a scan run needs, threaded explicitly from the
// driver down to each connection's handshake engine.
type Config struct {
	Port        int
	Fingerprint string
	Suite       handshake.AlgorithmSuite

	// PortScanOnly skips the handshake engine: a successful TCP connect is a
	// match, and key retrieval is delegated to an external tool.
	PortScanOnly bool

	// ConnTimeout is the per-connection wall-clock budget measured from the
	// moment the connect is initiated. Dial, handshake and reads all share it.
	ConnTimeout time.Duration

	// ReadChunkSize bounds a single read from a peer.
	ReadChunkSize int
}

const (
	defaultConnTimeout   = 8 * time.Second
	defaultReadChunkSize = 4096
)

// withDefaults fills in unset tunables.
func (c Config) withDefaults() Config {
	if c.ConnTimeout <= 0 {
		c.ConnTimeout = defaultConnTimeout
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = defaultReadChunkSize
	}
	return c
}

// MatchResult is the sole externally observable output of a scan: the peer
// that matched, and its host key when the handshake engine produced one.
type MatchResult struct {
	Address netip.Addr `json:"address" yaml:"address"`
	Port    int        `json:"port" yaml:"port"`
	HostKey string     `json:"host_key,omitempty" yaml:"host_key,omitempty"`
}

func (r MatchResult) String() string {
	return net.JoinHostPort(r.Address.String(), strconv.Itoa(r.Port))
}

// connection is the per-probe record the pool owns for its whole lifetime.
type connection struct {
	addr    netip.Addr
	created time.Time
	engine  *handshake.Engine
}

// Pool owns the in-flight probes of one batch. Each probe is a goroutine
// holding exactly one socket; the batch size is the concurrency ceiling, so a
// pool never has more sockets open than the driver allotted it.
type Pool struct {
	cfg    Config
	logger zerolog.Logger
}

// NewPool returns a pool for one batch run.
func NewPool(cfg Config) *Pool {
	return &Pool{
		cfg:    cfg.withDefaults(),
		logger: log.With().Str("component", "pool").Logger(),
	}
}

// Run probes every address in the batch and blocks until all probes finished,
// matched, errored or timed out. Every socket it opens is closed exactly once
// on every path. The returned matches preserve batch order.
func (p *Pool) Run(ctx context.Context, batch []netip.Addr) []MatchResult {
	results := make([]*MatchResult, len(batch))

	var wg sync.WaitGroup
	for i, addr := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m, ok := p.probe(ctx, addr); ok {
				results[i] = &m
			}
		}()
	}
	wg.Wait()

	var matches []MatchResult
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	return matches
}

// probe runs one connection from dial to terminal handshake stage. Socket and
// protocol errors are expected noise from the open internet: they reject the
// one connection at debug verbosity and never propagate.
func (p *Pool) probe(ctx context.Context, addr netip.Addr) (MatchResult, bool) {
	conn := connection{
		addr:    addr,
		created: time.Now(),
		engine:  handshake.NewEngine(p.cfg.Suite, p.cfg.Fingerprint),
	}
	deadline := conn.created.Add(p.cfg.ConnTimeout)
	target := net.JoinHostPort(addr.String(), strconv.Itoa(p.cfg.Port))

	dialer := net.Dialer{Deadline: deadline}
	sock, err := dialer.DialContext(ctx, "tcp4", target)
	if err != nil {
		p.logger.Debug().Str("target", target).Err(err).Msg("connect failed")
		return MatchResult{}, false
	}
	defer sock.Close()

	if p.cfg.PortScanOnly {
		return MatchResult{Address: addr, Port: p.cfg.Port}, true
	}

	// The whole handshake shares the wall-clock budget from connect time.
	if err := sock.SetDeadline(deadline); err != nil {
		return MatchResult{}, false
	}

	if err := p.converse(sock, &conn); err != nil {
		p.logger.Debug().Str("target", target).Err(err).Msg("probe ended")
	}
	if conn.engine.Stage() != handshake.StageMatched {
		return MatchResult{}, false
	}
	p.logger.Debug().Str("target", target).Msg("fingerprint matched")
	return MatchResult{Address: addr, Port: p.cfg.Port, HostKey: conn.engine.HostKey()}, true
}

// converse pumps bytes between the socket and the handshake engine until the
// engine reaches a terminal stage, the peer closes, or the deadline fires.
func (p *Pool) converse(sock net.Conn, conn *connection) error {
	chunk := make([]byte, p.cfg.ReadChunkSize)
	for !conn.engine.Stage().Terminal() {
		n, err := sock.Read(chunk)
		if n > 0 {
			if out := conn.engine.Feed(chunk[:n]); len(out) > 0 {
				if _, werr := sock.Write(out); werr != nil {
					return fmt.Errorf("write: %w", werr)
				}
			}
		}
		if err != nil {
			// Timeout, reset or orderly close all end the probe the same way.
			return fmt.Errorf("read: %w", err)
		}
	}
	return nil
}
