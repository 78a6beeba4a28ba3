//go:build !unix

package scanner

// descriptorBudget returns a conservative default on platforms without a
// readable file-descriptor limit.
func descriptorBudget() int {
	return fallbackDescriptorBudget
}
