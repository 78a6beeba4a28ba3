package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// All lookups point at a closed loopback port so the runs stay hermetic: the
// registry is unreachable, which is a clean zero-route outcome.
func TestExecuteNoMatchExitCode(t *testing.T) {
	rootCmd.SetArgs([]string{
		"--whois-server", "127.0.0.1:1",
		"--progress=false",
		"--log-level", "error",
		"AAAAE2VjZHNh", "64500",
	})
	assert.Equal(t, ExitNoMatch, Execute())
}

func TestExecuteInvalidKeyAlgoExitCode(t *testing.T) {
	rootCmd.SetArgs([]string{
		"--whois-server", "127.0.0.1:1",
		"--key-algo", "dsa",
		"--progress=false",
		"--log-level", "error",
		"AAAAE2VjZHNh", "64500",
	})
	assert.Equal(t, ExitError, Execute())
}

func TestExecuteMissingArgsExitCode(t *testing.T) {
	rootCmd.SetArgs([]string{"AAAAE2VjZHNh"})
	assert.Equal(t, ExitError, Execute())
}
