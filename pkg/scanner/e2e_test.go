package scanner

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startRealSSHPeer runs an actual SSH server (golang.org/x/crypto/ssh) on
// loopback and returns its address and the base64 encoding of its host key.
// The server never completes a connection — the scanner hangs up after the
// key-exchange reply — so handshake errors are expected and ignored.
func startRealSSHPeer(t *testing.T) (netip.Addr, int, string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromSigner(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				// Drives ident + KEXINIT + key exchange; fails once the
				// scanner disconnects mid-exchange.
				_, _, _, _ = ssh.NewServerConn(c, config)
			}(conn)
		}
	}()

	addrPort := netip.MustParseAddrPort(ln.Addr().String())
	hostKeyB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	return addrPort.Addr(), int(addrPort.Port()), hostKeyB64
}

func TestScanMatchesRealSSHServer(t *testing.T) {
	addr, port, hostKeyB64 := startRealSSHPeer(t)

	// A partial fingerprint from the middle of the key.
	fingerprint := hostKeyB64[8:24]

	cfg := poolConfig(t, fingerprint, port)
	cfg.ConnTimeout = 5 * time.Second
	driver := NewDriver(cfg, WithCeiling(4))

	matches, err := driver.Scan(context.Background(), addrSeq(addr), 1)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, addr, matches[0].Address)
	assert.Equal(t, port, matches[0].Port)
	assert.Equal(t, hostKeyB64, matches[0].HostKey)
}

func TestScanRejectsRealSSHServerWithWrongFingerprint(t *testing.T) {
	addr, port, _ := startRealSSHPeer(t)

	cfg := poolConfig(t, "this-is-not-base64-material!", port)
	cfg.ConnTimeout = 5 * time.Second
	driver := NewDriver(cfg, WithCeiling(4))

	matches, err := driver.Scan(context.Background(), addrSeq(addr), 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
