// Package commands wires the CLI surface to the scan core.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yuppity/sshd-finder/cmd/sshd-finder/internal/format"
	"github.com/yuppity/sshd-finder/pkg/config"
	"github.com/yuppity/sshd-finder/pkg/handshake"
	"github.com/yuppity/sshd-finder/pkg/keyscan"
	"github.com/yuppity/sshd-finder/pkg/logging"
	"github.com/yuppity/sshd-finder/pkg/netutil"
	"github.com/yuppity/sshd-finder/pkg/scanner"
	"github.com/yuppity/sshd-finder/pkg/whois"
)

// Exit codes of the scan run.
const (
	ExitMatch   = 0
	ExitError   = 1
	ExitNoMatch = 2
)

// errNoMatch marks a scan that completed cleanly without finding the host.
var errNoMatch = errors.New("no match found")

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sshd-finder [flags] fingerprint as_number",
	Short: "Locate an SSH server by host-key fingerprint inside an AS's address space",
	Long: `sshd-finder expands the routes announced by an autonomous system into
candidate addresses, probes them concurrently with a minimal SSH handshake,
and stops at the first host whose key matches the fingerprint substring.`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolP("exec-ks", "e", false, "delegate key retrieval to an external key-scan tool")
	flags.IntP("port", "p", 22, "TCP port to probe")
	flags.StringP("key-algo", "k", "ecdsa", "host-key algorithm: ecdsa, ed25519 or rsa")
	flags.Duration("timeout", config.DefaultConfig().Scan.ConnTimeout, "per-connection timeout")
	flags.Int("max-sockets", 0, "cap on simultaneous connections (0 = descriptor budget)")
	flags.Int("min-prefix", config.DefaultConfig().Scan.MinPrefixLen, "smallest accepted CIDR prefix length")
	flags.String("whois-server", config.DefaultConfig().Whois.Server, "routing registry host:port")
	flags.String("output", format.ModeText, "output format: text, json or yaml")
	flags.Bool("progress", true, "show a progress bar")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI and maps its outcome to a process exit code.
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return ExitMatch
	case errors.Is(err, errNoMatch):
		return ExitNoMatch
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitError
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	manager := config.NewManager()
	if err := manager.Load(cmd.Flags(), configFile); err != nil {
		return err
	}
	cfg := manager.Get()
	logging.ConfigureGlobalLogging(cfg.Log.Level)

	fingerprint, asNumber := args[0], args[1]
	if fingerprint == "" {
		return errors.New("fingerprint must not be empty")
	}

	suite, err := handshake.NewAlgorithmSuite(cfg.Scan.KeyAlgo)
	if err != nil {
		return err
	}

	// The external tool must be present before any network activity starts.
	var delegate scanner.Delegate
	if cfg.Scan.ExecKeyScan {
		runner, err := keyscan.NewRunner("", cfg.Scan.KeyAlgo, fingerprint, cfg.Scan.ConnTimeout)
		if err != nil {
			return err
		}
		delegate = runner
	}

	routes := whois.NewClient(cfg.Whois.Server, cfg.Whois.Timeout).RoutesForAS(asNumber)
	if len(routes) == 0 {
		log.Warn().Str("as", asNumber).Msg("no routes found for AS, nothing to scan")
		return reportNoMatch(cfg)
	}

	blocks, err := netutil.ParseCIDRs(routes, cfg.Scan.MinPrefixLen)
	if err != nil {
		return err
	}

	opts := []scanner.Option{
		scanner.WithCeiling(scanner.Ceiling(cfg.Scan.MaxSockets)),
	}
	if delegate != nil {
		opts = append(opts, scanner.WithDelegate(delegate))
	}
	if cfg.Output.Progress && cfg.Output.Format == format.ModeText {
		opts = append(opts, scanner.WithProgress(os.Stderr))
	}

	driver := scanner.NewDriver(scanner.Config{
		Port:         cfg.Scan.Port,
		Fingerprint:  fingerprint,
		Suite:        suite,
		PortScanOnly: cfg.Scan.ExecKeyScan,
		ConnTimeout:  cfg.Scan.ConnTimeout,
	}, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	matches, err := driver.Scan(ctx, netutil.ConcatAddresses(blocks), netutil.TotalHosts(blocks))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return reportNoMatch(cfg)
	}
	return format.New(os.Stdout, cfg.Output.Format).PrintMatches(matches)
}

func reportNoMatch(cfg config.Config) error {
	if err := format.New(os.Stdout, cfg.Output.Format).PrintNoMatch(); err != nil {
		return err
	}
	return errNoMatch
}
