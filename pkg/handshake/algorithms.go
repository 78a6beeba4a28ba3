package handshake

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/curve25519"

	"github.com/yuppity/sshd-finder/pkg/sshwire"
)

// ErrUnknownKeyAlgo indicates an unsupported host-key algorithm selection.
var ErrUnknownKeyAlgo = errors.New("unknown host-key algorithm")

// ClientIdent is the identification string announced to scanned peers.
const ClientIdent = "SSH-2.0-sshd-finder"

// keyAlgoWireNames maps the CLI selection to the SSH wire algorithm name.
var keyAlgoWireNames = map[string]string{
	"ecdsa":   "ecdsa-sha2-nistp256",
	"ed25519": "ssh-ed25519",
	"rsa":     "rsa-sha2-512",
}

// KeyAlgoNames lists the accepted host-key algorithm selections.
func KeyAlgoNames() []string {
	names := make([]string, 0, len(keyAlgoWireNames))
	for name := range keyAlgoWireNames {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// kexPreference is the static order in which key-exchange methods are tried
// against a peer's advertised list. Only methods with a precomputed
// placeholder payload appear here.
var kexPreference = []string{
	"curve25519-sha256",
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
}

// AlgorithmSuite is the immutable "pretend support" configuration a run's
// engines negotiate with. It is constructed once per run and shared read-only
// across connections: the name-lists sent in KEXINIT, the wire name of the
// caller-requested host-key algorithm, and one precomputed placeholder
// key-exchange payload per supported method. The placeholder payloads carry
// real ephemeral public keys so servers complete their half of the exchange
// and reveal their host key; the exchange is never finished.
type AlgorithmSuite struct {
	hostKeyAlgo string
	lists       sshwire.KexInitLists
	kexPayloads map[string][]byte
}

// NewAlgorithmSuite builds the suite for the given CLI host-key algorithm
// selection (ecdsa, ed25519 or rsa).
func NewAlgorithmSuite(keyAlgo string) (AlgorithmSuite, error) {
	wireName, ok := keyAlgoWireNames[keyAlgo]
	if !ok {
		return AlgorithmSuite{}, fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownKeyAlgo, keyAlgo, KeyAlgoNames())
	}

	payloads, err := placeholderKexPayloads()
	if err != nil {
		return AlgorithmSuite{}, fmt.Errorf("generating placeholder kex payloads: %w", err)
	}

	hostKeyAlgos := []string{"ssh-ed25519", "ecdsa-sha2-nistp256", "rsa-sha2-512", "rsa-sha2-256"}
	if !slices.Contains(hostKeyAlgos, wireName) {
		hostKeyAlgos = append(hostKeyAlgos, wireName)
	}

	return AlgorithmSuite{
		hostKeyAlgo: wireName,
		kexPayloads: payloads,
		lists: sshwire.KexInitLists{
			KexAlgorithms:             slices.Clone(kexPreference),
			HostKeyAlgorithms:         hostKeyAlgos,
			EncryptionClientToServer:  []string{"aes128-ctr", "aes192-ctr", "aes256-ctr"},
			EncryptionServerToClient:  []string{"aes128-ctr", "aes192-ctr", "aes256-ctr"},
			MACClientToServer:         []string{"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1"},
			MACServerToClient:         []string{"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1"},
			CompressionClientToServer: []string{"none"},
			CompressionServerToClient: []string{"none"},
		},
	}, nil
}

// HostKeyAlgo returns the wire name of the requested host-key algorithm.
func (s AlgorithmSuite) HostKeyAlgo() string {
	return s.hostKeyAlgo
}

// selectKex picks the first preferred key-exchange method the peer advertises
// for which a placeholder payload exists. The second return is false when
// nothing matches.
func (s AlgorithmSuite) selectKex(peerKexAlgos []string) ([]byte, bool) {
	for _, name := range kexPreference {
		if !slices.Contains(peerKexAlgos, name) {
			continue
		}
		if payload, ok := s.kexPayloads[name]; ok {
			return payload, true
		}
	}
	return nil, false
}

// kexInitPayload builds the full KEXINIT payload, message code included.
func (s AlgorithmSuite) kexInitPayload() []byte {
	return append([]byte{sshwire.MsgKexInit}, sshwire.EncodeKexInit(s.lists)...)
}

// placeholderKexPayloads generates one ephemeral public key per supported
// key-exchange method and wraps each as a KEX_ECDH_INIT payload body.
func placeholderKexPayloads() (map[string][]byte, error) {
	payloads := make(map[string][]byte, len(kexPreference))

	var scalar [curve25519.ScalarSize]byte
	if _, err := rand.Read(scalar[:]); err != nil {
		return nil, err
	}
	curvePub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	payloads["curve25519-sha256"] = ecdhInitPayload(curvePub)
	payloads["curve25519-sha256@libssh.org"] = ecdhInitPayload(curvePub)

	for name, curve := range map[string]ecdh.Curve{
		"ecdh-sha2-nistp256": ecdh.P256(),
		"ecdh-sha2-nistp384": ecdh.P384(),
	} {
		key, err := curve.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		payloads[name] = ecdhInitPayload(key.PublicKey().Bytes())
	}
	return payloads, nil
}

func ecdhInitPayload(pub []byte) []byte {
	payload := []byte{sshwire.MsgKexECDHInit}
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(pub)))
	return append(payload, pub...)
}
