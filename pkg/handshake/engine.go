// Package handshake drives just enough of the SSH transport handshake to make
// a server reveal its host key: identification exchange, KEXINIT negotiation
// and host-key extraction. It never completes a key exchange.
package handshake

import (
	"bytes"
	"slices"
	"strings"

	"github.com/yuppity/sshd-finder/pkg/sshwire"
)

// Stage is a connection's position in the handshake.
type Stage int

const (
	StageAwaitingIdentification Stage = iota
	StageAwaitingKexInit
	StageAwaitingHostKey
	StageMatched
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingIdentification:
		return "awaiting-identification"
	case StageAwaitingKexInit:
		return "awaiting-kexinit"
	case StageAwaitingHostKey:
		return "awaiting-hostkey"
	case StageMatched:
		return "matched"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the handshake is finished, either way.
func (s Stage) Terminal() bool {
	return s == StageMatched || s == StageRejected
}

const identPrefix = "SSH-"

// Engine is the per-connection handshake state machine. It is fed raw bytes
// as they arrive and hands back whatever must be written to the peer. All
// protocol-level failures collapse into StageRejected; malformed input from a
// scanned host is expected noise, not an error.
type Engine struct {
	suite       AlgorithmSuite
	fingerprint string

	stage   Stage
	buf     []byte
	hostKey string
}

// NewEngine returns an engine matching fingerprint as a substring of the
// base64 host key, negotiating with the given suite.
func NewEngine(suite AlgorithmSuite, fingerprint string) *Engine {
	return &Engine{suite: suite, fingerprint: fingerprint}
}

// Stage returns the current handshake stage.
func (e *Engine) Stage() Stage {
	return e.stage
}

// HostKey returns the base64-encoded host key once the engine has matched.
func (e *Engine) HostKey() string {
	return e.hostKey
}

// Feed consumes bytes received from the peer and returns bytes to send back,
// if any. Peers may pipeline several messages into one read, so the buffer is
// drained in a loop until no complete message remains or the handshake ends.
func (e *Engine) Feed(data []byte) []byte {
	if e.stage.Terminal() {
		return nil
	}
	e.buf = append(e.buf, data...)

	var out []byte
	for !e.stage.Terminal() {
		step, progressed := e.advance()
		out = append(out, step...)
		if !progressed {
			break
		}
	}
	return out
}

// advance attempts one state transition off the buffered bytes. It reports
// whether any progress was made, so the caller knows to try again for
// pipelined input.
func (e *Engine) advance() (out []byte, progressed bool) {
	switch e.stage {
	case StageAwaitingIdentification:
		return e.consumeIdentification()
	case StageAwaitingKexInit:
		payload, ok := e.consumePacket()
		if !ok {
			return nil, false
		}
		return e.handleKexInit(payload), true
	case StageAwaitingHostKey:
		payload, ok := e.consumePacket()
		if !ok {
			return nil, false
		}
		e.handleHostKey(payload)
		return nil, true
	default:
		return nil, false
	}
}

// consumeIdentification waits for the peer's identification line. Anything
// that cannot be the start of "SSH-" rejects immediately; a complete line
// that does not announce protocol 2 rejects as well.
func (e *Engine) consumeIdentification() (out []byte, progressed bool) {
	probe := min(len(e.buf), len(identPrefix))
	if !bytes.Equal(e.buf[:probe], []byte(identPrefix)[:probe]) {
		e.stage = StageRejected
		return nil, true
	}

	nl := bytes.IndexByte(e.buf, '\n')
	if nl < 0 {
		return nil, false
	}
	line := strings.TrimRight(string(e.buf[:nl]), "\r")
	e.buf = e.buf[nl+1:]

	if !strings.Contains(line, "SSH-2") {
		e.stage = StageRejected
		return nil, true
	}

	out = append(out, ClientIdent+"\r\n"...)
	out = append(out, sshwire.FramePacket(e.suite.kexInitPayload())...)
	e.stage = StageAwaitingKexInit
	return out, true
}

// consumePacket slices one complete framed packet off the buffer and unframes
// it. A short buffer means "wait for more bytes"; a framing error rejects.
func (e *Engine) consumePacket() ([]byte, bool) {
	total, err := sshwire.PacketLength(e.buf)
	if err != nil {
		e.stage = StageRejected
		return nil, false
	}
	if total == 0 || len(e.buf) < total {
		return nil, false
	}

	payload, err := sshwire.UnframePacket(e.buf[:total])
	if err != nil || len(payload) == 0 {
		e.stage = StageRejected
		return nil, false
	}
	e.buf = e.buf[total:]
	return payload, true
}

func (e *Engine) handleKexInit(payload []byte) []byte {
	if payload[0] != sshwire.MsgKexInit {
		e.stage = StageRejected
		return nil
	}
	lists, _, err := sshwire.DecodeKexInit(payload[1:])
	if err != nil {
		e.stage = StageRejected
		return nil
	}

	// A peer that cannot present a key of the requested type can never
	// produce a comparable fingerprint.
	if !slices.Contains(lists.HostKeyAlgorithms, e.suite.HostKeyAlgo()) {
		e.stage = StageRejected
		return nil
	}

	kexPayload, ok := e.suite.selectKex(lists.KexAlgorithms)
	if !ok {
		e.stage = StageRejected
		return nil
	}
	e.stage = StageAwaitingHostKey
	return sshwire.FramePacket(kexPayload)
}

func (e *Engine) handleHostKey(payload []byte) {
	if payload[0] != sshwire.MsgKexECDHReply {
		e.stage = StageRejected
		return
	}
	key, err := sshwire.ExtractHostKey(payload[1:])
	if err != nil {
		e.stage = StageRejected
		return
	}
	if !strings.Contains(key, e.fingerprint) {
		e.stage = StageRejected
		return
	}
	e.hostKey = key
	e.stage = StageMatched
}
