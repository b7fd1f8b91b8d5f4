package marshal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

// Ticket lists are the one payload the generated boundary surface cannot
// express, so their wire shape is fixed here by hand:
//
//	int32 count (big-endian)
//	count times:
//	    int32  hashLen (big-endian)
//	    [hashLen]byte hash, UTF-8
//	    int64  nonce (big-endian)
//
// A buffer whose first non-space byte is '[' is instead read as the sharder
// JSON response, [{"hash": "...", "nonce": n}, ...].

const minTicketSize = 4 + 8

// EncodeTickets writes tickets in the binary wire shape.
func EncodeTickets(tickets callback.BurnTickets) ([]byte, error) {
	if len(tickets) > math.MaxInt32 {
		return nil, errors.Wrap(ErrTickets, "too many tickets")
	}
	size := 4
	for _, t := range tickets {
		size += minTicketSize + len(t.Hash)
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(tickets)))
	for _, t := range tickets {
		if len(t.Hash) > math.MaxInt32 {
			return nil, errors.Wrap(ErrTickets, "hash too long")
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Hash)))
		buf = append(buf, t.Hash...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(t.Nonce))
	}
	return buf, nil
}

// DecodeTickets reads a ticket list buffer. An empty buffer decodes to nil.
func DecodeTickets(buf []byte) (callback.BurnTickets, error) {
	trimmed := bytes.TrimLeft(buf, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return DecodeTicketsJSON(trimmed)
	}
	return decodeTicketsBinary(buf)
}

func decodeTicketsBinary(buf []byte) (callback.BurnTickets, error) {
	if len(buf) < 4 {
		return nil, errors.Wrap(ErrTickets, "short count")
	}
	count := int32(binary.BigEndian.Uint32(buf))
	buf = buf[4:]
	if count < 0 || int(count) > len(buf)/minTicketSize {
		return nil, errors.Wrapf(ErrTickets, "count %d does not fit %d bytes", count, len(buf))
	}
	if count == 0 {
		if len(buf) != 0 {
			return nil, errors.Wrapf(ErrTickets, "%d trailing bytes", len(buf))
		}
		return nil, nil
	}
	out := make(callback.BurnTickets, 0, count)
	for i := int32(0); i < count; i++ {
		if len(buf) < 4 {
			return nil, errors.Wrapf(ErrTickets, "ticket %d: short hash length", i)
		}
		n := int32(binary.BigEndian.Uint32(buf))
		buf = buf[4:]
		if n < 0 || int(n)+8 > len(buf) {
			return nil, errors.Wrapf(ErrTickets, "ticket %d: hash length %d out of range", i, n)
		}
		hash := buf[:n]
		if !utf8.Valid(hash) {
			return nil, errors.Wrapf(ErrEncoding, "ticket %d: hash is not utf-8", i)
		}
		nonce := int64(binary.BigEndian.Uint64(buf[n:]))
		out = append(out, callback.BurnTicket{Hash: string(hash), Nonce: nonce})
		buf = buf[n+8:]
	}
	if len(buf) != 0 {
		return nil, errors.Wrapf(ErrTickets, "%d trailing bytes", len(buf))
	}
	return out, nil
}

// DecodeTicketsJSON reads the sharder JSON form of a ticket list.
func DecodeTicketsJSON(data []byte) (callback.BurnTickets, error) {
	var out callback.BurnTickets
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(ErrTickets, err.Error())
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
