// Package sshwire implements the minimal SSH transport encodings the scanner
// needs: binary packet framing, the KEXINIT payload layout, and host-key blob
// extraction. All transforms are stateless and operate on byte buffers.
package sshwire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPacket indicates a protocol-level decode failure. Scanned peers
// routinely send garbage, so callers recover by rejecting the one connection.
var ErrMalformedPacket = errors.New("malformed packet")

// SSH transport message codes used during key exchange.
const (
	MsgKexInit      byte = 20
	MsgNewKeys      byte = 21
	MsgKexECDHInit  byte = 30
	MsgKexECDHReply byte = 31
)

const (
	packetLenSize = 4
	padLenSize    = 1
	minPadding    = 4
	blockSize     = 8
)

// FramePacket wraps payload in the SSH binary packet format:
// [4-byte length][1-byte padding length][payload][random padding]. The total
// framed length is a multiple of 8 and padding is at least 4 bytes.
func FramePacket(payload []byte) []byte {
	padLen := blockSize - (packetLenSize+padLenSize+len(payload))%blockSize
	if padLen < minPadding {
		padLen += blockSize
	}

	packetLen := padLenSize + len(payload) + padLen
	out := make([]byte, packetLenSize+packetLen)
	binary.BigEndian.PutUint32(out, uint32(packetLen))
	out[packetLenSize] = byte(padLen)
	copy(out[packetLenSize+padLenSize:], payload)
	rand.Read(out[packetLenSize+padLenSize+len(payload):])
	return out
}

// UnframePacket is the inverse of FramePacket: it strips the length fields and
// padding and returns the payload. The buffer must hold exactly one packet.
func UnframePacket(buf []byte) ([]byte, error) {
	if len(buf) < packetLenSize+padLenSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a packet header", ErrMalformedPacket, len(buf))
	}
	packetLen := binary.BigEndian.Uint32(buf)
	if int(packetLen) != len(buf)-packetLenSize {
		return nil, fmt.Errorf("%w: declared length %d does not match buffer size %d", ErrMalformedPacket, packetLen, len(buf)-packetLenSize)
	}
	padLen := int(buf[packetLenSize])
	if padLen+padLenSize > int(packetLen) {
		return nil, fmt.Errorf("%w: padding length %d exceeds packet bounds", ErrMalformedPacket, padLen)
	}
	return buf[packetLenSize+padLenSize : packetLenSize+int(packetLen)-padLen], nil
}

// PacketLength reports the total framed size of the packet starting at the
// head of buf, or 0 when fewer bytes than a header are buffered. It lets a
// caller slice one complete packet out of a stream that may carry several.
func PacketLength(buf []byte) (int, error) {
	if len(buf) < packetLenSize+padLenSize {
		return 0, nil
	}
	packetLen := binary.BigEndian.Uint32(buf)
	if packetLen == 0 || packetLen > maxPacketLen {
		return 0, fmt.Errorf("%w: implausible declared length %d", ErrMalformedPacket, packetLen)
	}
	return packetLenSize + int(packetLen), nil
}

// maxPacketLen bounds what we will buffer from an untrusted peer. RFC 4253
// requires implementations to handle 35000 bytes; nothing we parse comes close.
const maxPacketLen = 35000
