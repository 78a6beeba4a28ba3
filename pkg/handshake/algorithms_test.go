package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuppity/sshd-finder/pkg/sshwire"
)

func TestNewAlgorithmSuite(t *testing.T) {
	tests := []struct {
		name     string
		keyAlgo  string
		wantWire string
		wantErr  bool
	}{
		{name: "ecdsa", keyAlgo: "ecdsa", wantWire: "ecdsa-sha2-nistp256"},
		{name: "ed25519", keyAlgo: "ed25519", wantWire: "ssh-ed25519"},
		{name: "rsa", keyAlgo: "rsa", wantWire: "rsa-sha2-512"},
		{name: "unknown", keyAlgo: "dsa", wantErr: true},
		{name: "empty", keyAlgo: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite, err := NewAlgorithmSuite(tt.keyAlgo)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownKeyAlgo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWire, suite.HostKeyAlgo())
			assert.Contains(t, suite.lists.HostKeyAlgorithms, tt.wantWire)
		})
	}
}

func TestSelectKexPrefersStaticOrder(t *testing.T) {
	suite, err := NewAlgorithmSuite("ecdsa")
	require.NoError(t, err)

	// Peer advertises nistp256 before curve25519; our preference still wins.
	payload, ok := suite.selectKex([]string{"ecdh-sha2-nistp256", "curve25519-sha256"})
	require.True(t, ok)
	assert.Equal(t, suite.kexPayloads["curve25519-sha256"], payload)

	payload, ok = suite.selectKex([]string{"ecdh-sha2-nistp384"})
	require.True(t, ok)
	assert.Equal(t, suite.kexPayloads["ecdh-sha2-nistp384"], payload)

	_, ok = suite.selectKex([]string{"diffie-hellman-group14-sha1"})
	assert.False(t, ok)
}

func TestPlaceholderPayloadsAreValidECDHInits(t *testing.T) {
	suite, err := NewAlgorithmSuite("ed25519")
	require.NoError(t, err)

	wantLens := map[string]int{
		"curve25519-sha256":            32,
		"curve25519-sha256@libssh.org": 32,
		"ecdh-sha2-nistp256":           65, // uncompressed point
		"ecdh-sha2-nistp384":           97,
	}
	for name, wantLen := range wantLens {
		payload, ok := suite.kexPayloads[name]
		require.True(t, ok, name)
		assert.Equal(t, sshwire.MsgKexECDHInit, payload[0], name)
		assert.Len(t, payload, 1+4+wantLen, name)
	}
}

func TestKeyAlgoNames(t *testing.T) {
	assert.Equal(t, []string{"ecdsa", "ed25519", "rsa"}, KeyAlgoNames())
}
