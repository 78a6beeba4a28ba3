package format

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yuppity/sshd-finder/pkg/scanner"
)

func sampleMatches() []scanner.MatchResult {
	return []scanner.MatchResult{
		{
			Address: netip.MustParseAddr("203.0.113.9"),
			Port:    22,
			HostKey: "AAAAC3NzaC1lZDI1NTE5AAAAIWantedKey",
		},
	}
}

func TestPrintMatchesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeJSON).PrintMatches(sampleMatches()))

	var doc struct {
		Matched bool `json:"matched"`
		Results []struct {
			Address string `json:"address"`
			Port    int    `json:"port"`
			HostKey string `json:"host_key"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Matched)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, "203.0.113.9", doc.Results[0].Address)
	assert.Equal(t, 22, doc.Results[0].Port)
	assert.Equal(t, "AAAAC3NzaC1lZDI1NTE5AAAAIWantedKey", doc.Results[0].HostKey)
}

func TestPrintNoMatchJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeJSON).PrintNoMatch())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, false, doc["matched"])
}

func TestPrintMatchesYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeYAML).PrintMatches(sampleMatches()))

	var doc struct {
		Matched bool `yaml:"matched"`
		Results []struct {
			Address string `yaml:"address"`
		} `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Matched)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, "203.0.113.9", doc.Results[0].Address)
}

func TestPrintMatchesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeText).PrintMatches(sampleMatches()))
	assert.Contains(t, buf.String(), "203.0.113.9:22")
	assert.Contains(t, buf.String(), "sshd located")
}

func TestPrintNoMatchText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeText).PrintNoMatch())
	assert.Contains(t, buf.String(), "no matching host")
}
