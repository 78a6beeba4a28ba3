package netutil

import (
	"iter"
	"net/netip"
)

// ParseCIDRs parses every block, failing on the first invalid one.
func ParseCIDRs(specs []string, minPrefix int) ([]CIDRBlock, error) {
	blocks := make([]CIDRBlock, 0, len(specs))
	for _, s := range specs {
		block, err := ParseCIDR(s, minPrefix)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// ConcatAddresses chains the expansions of several blocks into one sequence,
// in block order. Addresses appearing in more than one block are yielded each
// time; deduplication is deliberately not performed.
func ConcatAddresses(blocks []CIDRBlock) iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		for _, block := range blocks {
			for addr := range block.Addresses() {
				if !yield(addr) {
					return
				}
			}
		}
	}
}

// TotalHosts sums the expansion sizes of all blocks.
func TotalHosts(blocks []CIDRBlock) uint64 {
	var total uint64
	for _, block := range blocks {
		total += block.HostCount()
	}
	return total
}
