// Package version provides version metadata for the application.
package version

import "fmt"

// These variables are injected at build time using -ldflags.
var (
	// Version holds the current version of sshd-finder.
	Version = "dev"
	// Commit holds the current version commit of sshd-finder.
	Commit = "none"
	// BuildDate holds the build date of sshd-finder.
	BuildDate = "unknown"
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("sshd-finder %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
}
