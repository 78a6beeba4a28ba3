package sshwire

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

const cookieSize = 16

// KexInitLists holds the ten algorithm name-lists of a KEXINIT payload, in
// wire order.
type KexInitLists struct {
	KexAlgorithms             []string
	HostKeyAlgorithms         []string
	EncryptionClientToServer  []string
	EncryptionServerToClient  []string
	MACClientToServer         []string
	MACServerToClient         []string
	CompressionClientToServer []string
	CompressionServerToClient []string
	LanguagesClientToServer   []string
	LanguagesServerToClient   []string
}

func (l *KexInitLists) fields() []*[]string {
	return []*[]string{
		&l.KexAlgorithms,
		&l.HostKeyAlgorithms,
		&l.EncryptionClientToServer,
		&l.EncryptionServerToClient,
		&l.MACClientToServer,
		&l.MACServerToClient,
		&l.CompressionClientToServer,
		&l.CompressionServerToClient,
		&l.LanguagesClientToServer,
		&l.LanguagesServerToClient,
	}
}

// EncodeKexInit encodes the name-lists as a KEXINIT payload body: a 16-byte
// random cookie, ten length-prefixed comma-joined name-lists, the "guessed kex
// follows" flag (always false) and the 4-byte reserved field. The transport
// message code is not included; callers prepend it when building the packet.
func EncodeKexInit(lists KexInitLists) []byte {
	var cookie [cookieSize]byte
	rand.Read(cookie[:])

	buf := make([]byte, 0, 256)
	buf = append(buf, cookie[:]...)
	for _, list := range lists.fields() {
		buf = appendNameList(buf, *list)
	}
	buf = append(buf, 0)          // first_kex_packet_follows
	buf = append(buf, 0, 0, 0, 0) // reserved
	return buf
}

// DecodeKexInit is the inverse of EncodeKexInit. It returns the ten name-lists
// and the peer's "guessed kex follows" flag.
func DecodeKexInit(buf []byte) (KexInitLists, bool, error) {
	var lists KexInitLists
	if len(buf) < cookieSize {
		return lists, false, fmt.Errorf("%w: kexinit shorter than cookie", ErrMalformedPacket)
	}
	rest := buf[cookieSize:]

	var err error
	for _, list := range lists.fields() {
		*list, rest, err = readNameList(rest)
		if err != nil {
			return KexInitLists{}, false, err
		}
	}

	if len(rest) < 1 {
		return KexInitLists{}, false, fmt.Errorf("%w: kexinit missing guess flag", ErrMalformedPacket)
	}
	guess := rest[0] != 0
	return lists, guess, nil
}

// ExtractHostKey decodes the leading 4-byte length-prefixed host-key blob of a
// key-exchange-reply payload body and returns its base64 text encoding.
func ExtractHostKey(buf []byte) (string, error) {
	blob, _, err := readString(buf)
	if err != nil {
		return "", fmt.Errorf("%w: host key blob: %w", ErrMalformedPacket, err)
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// appendNameList appends a name-list: a 4-byte length prefix followed by the
// comma-joined names. Empty lists encode as length 0.
func appendNameList(buf []byte, names []string) []byte {
	joined := strings.Join(names, ",")
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(joined)))
	return append(buf, joined...)
}

func readNameList(buf []byte) ([]string, []byte, error) {
	raw, rest, err := readString(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: name-list: %w", ErrMalformedPacket, err)
	}
	if len(raw) == 0 {
		return nil, rest, nil
	}
	return strings.Split(string(raw), ","), rest, nil
}

func readString(buf []byte) (val, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf)
	if uint32(len(buf)-4) < n {
		return nil, nil, fmt.Errorf("declared length %d runs past buffer end", n)
	}
	return buf[4 : 4+n], buf[4+n:], nil
}
