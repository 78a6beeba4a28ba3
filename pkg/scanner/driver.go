package scanner

import (
	"context"
	"io"
	"iter"
	"net/netip"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	// descriptorSafetyMargin is held back from the descriptor budget for
	// stdio, logging and whatever else the process has open.
	descriptorSafetyMargin = 32

	fallbackDescriptorBudget = 1024

	// maxDescriptorBudget caps the ceiling on hosts with effectively
	// unlimited descriptor budgets; a batch larger than this stops being a
	// useful back-pressure unit.
	maxDescriptorBudget = 65536
)

// Ceiling computes the scan concurrency ceiling: the process descriptor
// budget minus a safety margin, optionally clamped by maxSockets (0 means no
// explicit cap).
func Ceiling(maxSockets int) int {
	ceiling := descriptorBudget() - descriptorSafetyMargin
	if ceiling < 1 {
		ceiling = 1
	}
	if maxSockets > 0 && ceiling > maxSockets {
		ceiling = maxSockets
	}
	return ceiling
}

// Delegate receives the addresses a port-scan-only batch found open and
// performs key retrieval out of process.
type Delegate interface {
	ScanBatch(ctx context.Context, addrs []netip.Addr, port int) ([]MatchResult, error)
}

// Driver partitions the address stream into ceiling-sized batches, runs one
// pool per batch strictly sequentially, and stops at the first batch that
// yields a match.
type Driver struct {
	cfg      Config
	ceiling  int
	delegate Delegate
	progress io.Writer
	logger   zerolog.Logger
}

// Option tunes a Driver.
type Option func(*Driver)

// WithCeiling overrides the computed concurrency ceiling.
func WithCeiling(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.ceiling = n
		}
	}
}

// WithDelegate installs the external key-scan step used in port-scan-only
// mode.
func WithDelegate(del Delegate) Option {
	return func(d *Driver) { d.delegate = del }
}

// WithProgress enables a progress bar written to w.
func WithProgress(w io.Writer) Option {
	return func(d *Driver) { d.progress = w }
}

// NewDriver builds a driver for one run. The default ceiling comes from the
// process descriptor budget.
func NewDriver(cfg Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg.withDefaults(),
		ceiling: Ceiling(0),
		logger: log.With().
			Str("component", "driver").
			Str("scan_id", uuid.NewString()).
			Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ceiling returns the driver's effective concurrency ceiling.
func (d *Driver) Ceiling() int {
	return d.ceiling
}

// Scan walks the address sequence in batches until a match is found or the
// sequence is exhausted. total is the number of addresses the sequence will
// yield, used only for progress display. An exhausted sequence with no match
// returns an empty result set and no error.
func (d *Driver) Scan(ctx context.Context, addrs iter.Seq[netip.Addr], total uint64) ([]MatchResult, error) {
	d.logger.Info().
		Uint64("addresses", total).
		Int("ceiling", d.ceiling).
		Int("port", d.cfg.Port).
		Bool("port_scan_only", d.cfg.PortScanOnly).
		Msg("starting scan")

	bar := d.newProgressBar(total)
	pool := NewPool(d.cfg)

	next, stop := iter.Pull(addrs)
	defer stop()

	batchNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := nextBatch(next, d.ceiling)
		if len(batch) == 0 {
			break
		}
		batchNum++

		matches := pool.Run(ctx, batch)
		if bar != nil {
			_ = bar.Add(len(batch))
		}
		d.logger.Debug().
			Int("batch", batchNum).
			Int("size", len(batch)).
			Int("matches", len(matches)).
			Msg("batch complete")

		found, err := d.resolveBatch(ctx, matches)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			// First match wins; later batches are never scanned.
			if bar != nil {
				_ = bar.Finish()
			}
			d.logger.Info().Int("batch", batchNum).Msg("match found, stopping scan")
			return found, nil
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	d.logger.Info().Int("batches", batchNum).Msg("scan exhausted all batches without a match")
	return nil, nil
}

// resolveBatch turns a batch's raw pool results into final matches. In
// full-handshake mode the pool results already are final; in port-scan-only
// mode the open addresses are handed to the delegate key-scan step.
func (d *Driver) resolveBatch(ctx context.Context, matches []MatchResult) ([]MatchResult, error) {
	if !d.cfg.PortScanOnly {
		return matches, nil
	}
	if len(matches) == 0 || d.delegate == nil {
		return nil, nil
	}

	open := make([]netip.Addr, len(matches))
	for i, m := range matches {
		open[i] = m.Address
	}
	found, err := d.delegate.ScanBatch(ctx, open, d.cfg.Port)
	if err != nil {
		// A flaky external tool should not kill the run mid-scan.
		d.logger.Warn().Err(err).Msg("delegate key scan failed, continuing")
		return nil, nil
	}
	return found, nil
}

func (d *Driver) newProgressBar(total uint64) *progressbar.ProgressBar {
	if d.progress == nil {
		return nil
	}
	return progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}

// nextBatch pulls up to size addresses off the sequence.
func nextBatch(next func() (netip.Addr, bool), size int) []netip.Addr {
	batch := make([]netip.Addr, 0, size)
	for len(batch) < size {
		addr, ok := next()
		if !ok {
			break
		}
		batch = append(batch, addr)
	}
	return batch
}
