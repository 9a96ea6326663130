// Package orderid encodes the client order identifier attached to every
// order this system submits to a venue. The id survives a round trip through
// the venue as an opaque hex string and carries enough to route a fill back
// to the originating user and position.
package orderid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/howeyc/crc16"
)

// OrderID identifies one submitted order.
type OrderID struct {
	CreatedAt time.Time
	UserID    uint32
	WalletID  uint32
	Sequence  uint32
}

var (
	ErrHexTooShort       = errors.New("orderid: hex data too short")
	ErrIncorrectChecksum = errors.New("orderid: checksum does not match")
)

// Bytes returns the 16 byte wire representation, BigEndian throughout:
// 2 bytes days since epoch, 4 bytes UserID, 4 bytes WalletID, 4 bytes
// Sequence, 2 bytes CRC16 over the preceding 14.
func (id *OrderID) Bytes() []byte {
	out := make([]byte, 0, 16)

	days := id.CreatedAt.UTC().Unix() / 86400
	out = binary.BigEndian.AppendUint16(out, uint16(days))
	out = binary.BigEndian.AppendUint32(out, id.UserID)
	out = binary.BigEndian.AppendUint32(out, id.WalletID)
	out = binary.BigEndian.AppendUint32(out, id.Sequence)
	out = binary.BigEndian.AppendUint16(out, crc16.Checksum(out, crc16.IBMTable))

	return out
}

// Hex renders the id the way venues expect client order ids: 0x-prefixed.
func (id *OrderID) Hex() string {
	return "0x" + hex.EncodeToString(id.Bytes())
}

// HexAsPointer is a convenience for APIs taking *string.
func (id *OrderID) HexAsPointer() *string {
	h := id.Hex()
	return &h
}

// FromBytes decodes and checksum-verifies a 16 byte id. The timestamp comes
// back at day granularity, UTC midnight.
func FromBytes(v []byte) (*OrderID, error) {
	if len(v) != 16 {
		return nil, ErrHexTooShort
	}
	if crc16.Checksum(v[0:14], crc16.IBMTable) != binary.BigEndian.Uint16(v[14:16]) {
		return nil, ErrIncorrectChecksum
	}

	days := binary.BigEndian.Uint16(v[0:2])
	return &OrderID{
		CreatedAt: time.Unix(int64(days)*86400, 0).UTC(),
		UserID:    binary.BigEndian.Uint32(v[2:6]),
		WalletID:  binary.BigEndian.Uint32(v[6:10]),
		Sequence:  binary.BigEndian.Uint32(v[10:14]),
	}, nil
}

// FromHex decodes a 0x-prefixed (or bare) hex string.
func FromHex(s string) (*OrderID, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return FromBytes(raw)
}
