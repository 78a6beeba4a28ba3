// Package keyscan delegates host-key retrieval to an external key-collection
// tool (ssh-keyscan) for addresses the port scan found open.
package keyscan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yuppity/sshd-finder/pkg/scanner"
)

// ErrExternalTool indicates the delegate key-scan binary is not available.
// It is fatal only when delegation was explicitly requested.
var ErrExternalTool = errors.New("external key-scan tool unavailable")

// DefaultBinary is the host-key collection tool looked up on PATH.
const DefaultBinary = "ssh-keyscan"

// Runner invokes the external tool over a file of candidate addresses and
// matches its output against the fingerprint. It implements scanner.Delegate.
type Runner struct {
	binary      string
	keyType     string
	fingerprint string
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewRunner verifies the tool is present and returns a runner. keyType is the
// tool's key-type selector (ecdsa, ed25519 or rsa). An empty binary selects
// DefaultBinary.
func NewRunner(binary, keyType, fingerprint string, timeout time.Duration) (*Runner, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q not found on PATH", ErrExternalTool, binary)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{
		binary:      path,
		keyType:     keyType,
		fingerprint: fingerprint,
		timeout:     timeout,
		logger:      log.With().Str("component", "keyscan").Logger(),
	}, nil
}

// ScanBatch writes the addresses to a temporary file, runs the tool against
// it, and returns every address whose output line contains the fingerprint.
func (r *Runner) ScanBatch(ctx context.Context, addrs []netip.Addr, port int) ([]scanner.MatchResult, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	file, err := writeAddressFile(addrs)
	if err != nil {
		return nil, fmt.Errorf("writing address file: %w", err)
	}
	defer os.Remove(file)

	cmd := exec.CommandContext(ctx, r.binary,
		"-f", file,
		"-p", strconv.Itoa(port),
		"-T", strconv.Itoa(int(r.timeout.Round(time.Second)/time.Second)),
		"-t", r.keyType,
	)
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		// The tool exits non-zero when some hosts are unreachable; only a
		// run with no output at all is treated as a failure.
		return nil, fmt.Errorf("running %s: %w", r.binary, err)
	}

	matches := r.matchOutput(out, port)
	r.logger.Debug().Int("addresses", len(addrs)).Int("matches", len(matches)).Msg("delegate scan complete")
	return matches, nil
}

// matchOutput parses "address key-type base64-key" lines and keeps those
// containing the fingerprint substring.
func (r *Runner) matchOutput(out []byte, port int) []scanner.MatchResult {
	var matches []scanner.MatchResult
	scan := bufio.NewScanner(bytes.NewReader(out))
	for scan.Scan() {
		line := scan.Text()
		if strings.HasPrefix(line, "#") || !strings.Contains(line, r.fingerprint) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		addr, err := netip.ParseAddr(hostFromField(fields[0]))
		if err != nil {
			continue
		}
		matches = append(matches, scanner.MatchResult{Address: addr, Port: port, HostKey: fields[2]})
	}
	return matches
}

// hostFromField strips the "[host]:port" decoration the tool emits for
// non-default ports.
func hostFromField(field string) string {
	if strings.HasPrefix(field, "[") {
		if end := strings.Index(field, "]"); end > 0 {
			return field[1:end]
		}
	}
	return field
}

func writeAddressFile(addrs []netip.Addr) (string, error) {
	f, err := os.CreateTemp("", "sshd-finder-*.lst")
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, addr := range addrs {
		if _, err := fmt.Fprintln(f, addr); err != nil {
			os.Remove(f.Name())
			return "", err
		}
	}
	return f.Name(), nil
}
