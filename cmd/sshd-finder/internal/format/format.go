// Package format renders scan results for humans and machines.
package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/yuppity/sshd-finder/pkg/scanner"
)

// Output modes.
const (
	ModeText = "text"
	ModeJSON = "json"
	ModeYAML = "yaml"
)

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// Formatter writes scan results in one of the output modes.
type Formatter struct {
	out  io.Writer
	mode string
}

// New returns a formatter writing to out in the given mode.
func New(out io.Writer, mode string) *Formatter {
	return &Formatter{out: out, mode: mode}
}

// report is the machine-readable result document.
type report struct {
	Matched bool         `json:"matched" yaml:"matched"`
	Results []matchEntry `json:"results" yaml:"results"`
}

type matchEntry struct {
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`
	HostKey string `json:"host_key,omitempty" yaml:"host_key,omitempty"`
}

// PrintMatches renders a successful scan outcome.
func (f *Formatter) PrintMatches(matches []scanner.MatchResult) error {
	if f.mode != ModeText {
		return f.printStructured(matches)
	}

	lines := "sshd located"
	for _, m := range matches {
		lines += "\n" + color.GreenString("%s", m.String())
		if m.HostKey != "" {
			lines += fmt.Sprintf("  %s", m.HostKey)
		}
	}
	_, err := fmt.Fprintln(f.out, bannerStyle.Render(lines))
	return err
}

// PrintNoMatch renders the clean "nothing found" outcome.
func (f *Formatter) PrintNoMatch() error {
	if f.mode != ModeText {
		return f.printStructured(nil)
	}
	_, err := color.New(color.FgYellow).Fprintln(f.out, "scan completed: no matching host found")
	return err
}

func (f *Formatter) printStructured(matches []scanner.MatchResult) error {
	doc := report{Matched: len(matches) > 0, Results: []matchEntry{}}
	for _, m := range matches {
		doc.Results = append(doc.Results, matchEntry{
			Address: m.Address.String(),
			Port:    m.Port,
			HostKey: m.HostKey,
		})
	}

	switch f.mode {
	case ModeJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case ModeYAML:
		return yaml.NewEncoder(f.out).Encode(doc)
	default:
		return fmt.Errorf("unknown output mode %q", f.mode)
	}
}
