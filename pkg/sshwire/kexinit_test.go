package sshwire

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKexInitRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		lists KexInitLists
	}{
		{
			name: "typical server lists",
			lists: KexInitLists{
				KexAlgorithms:             []string{"curve25519-sha256", "ecdh-sha2-nistp256"},
				HostKeyAlgorithms:         []string{"ssh-ed25519", "ecdsa-sha2-nistp256", "rsa-sha2-512"},
				EncryptionClientToServer:  []string{"aes128-ctr", "aes256-gcm@openssh.com"},
				EncryptionServerToClient:  []string{"aes128-ctr"},
				MACClientToServer:         []string{"hmac-sha2-256"},
				MACServerToClient:         []string{"hmac-sha2-256", "hmac-sha1"},
				CompressionClientToServer: []string{"none", "zlib@openssh.com"},
				CompressionServerToClient: []string{"none"},
				LanguagesClientToServer:   nil,
				LanguagesServerToClient:   nil,
			},
		},
		{
			name:  "all lists empty",
			lists: KexInitLists{},
		},
		{
			name: "single entry per list",
			lists: KexInitLists{
				KexAlgorithms:             []string{"curve25519-sha256"},
				HostKeyAlgorithms:         []string{"ssh-ed25519"},
				EncryptionClientToServer:  []string{"aes128-ctr"},
				EncryptionServerToClient:  []string{"aes128-ctr"},
				MACClientToServer:         []string{"hmac-sha2-256"},
				MACServerToClient:         []string{"hmac-sha2-256"},
				CompressionClientToServer: []string{"none"},
				CompressionServerToClient: []string{"none"},
				LanguagesClientToServer:   []string{"en"},
				LanguagesServerToClient:   []string{"en"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeKexInit(tt.lists)
			got, guess, err := DecodeKexInit(encoded)
			require.NoError(t, err)
			assert.False(t, guess, "encoder never sets the guess flag")
			assert.Equal(t, tt.lists, got)
		})
	}
}

func TestEncodeKexInitCookieIsRandom(t *testing.T) {
	a := EncodeKexInit(KexInitLists{})
	b := EncodeKexInit(KexInitLists{})
	assert.NotEqual(t, a[:16], b[:16], "two payloads should carry different cookies")
}

func TestDecodeKexInitRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "shorter than cookie", buf: make([]byte, 8)},
		{
			name: "list length past buffer end",
			buf: func() []byte {
				buf := make([]byte, 16) // cookie
				return binary.BigEndian.AppendUint32(buf, 500)
			}(),
		},
		{
			name: "missing guess flag",
			buf: func() []byte {
				b := EncodeKexInit(KexInitLists{})
				return b[:len(b)-5] // strip flag and reserved field
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeKexInit(tt.buf)
			require.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestDecodeKexInitGuessFlag(t *testing.T) {
	buf := EncodeKexInit(KexInitLists{})
	buf[len(buf)-5] = 1

	_, guess, err := DecodeKexInit(buf)
	require.NoError(t, err)
	assert.True(t, guess)
}

func TestExtractHostKey(t *testing.T) {
	blob := []byte{0x00, 0x00, 0x00, 0x0b, 's', 's', 'h', '-', 'e', 'd', '2', '5', '5', '1', '9', 0xde, 0xad}
	payload := binary.BigEndian.AppendUint32(nil, uint32(len(blob)))
	payload = append(payload, blob...)
	payload = append(payload, []byte("trailing exchange fields")...)

	got, err := ExtractHostKey(payload)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(blob), got)
}

func TestExtractHostKeyRejectsOverrun(t *testing.T) {
	payload := binary.BigEndian.AppendUint32(nil, 64) // declares 64 bytes, has none
	_, err := ExtractHostKey(payload)
	require.ErrorIs(t, err, ErrMalformedPacket)
}
