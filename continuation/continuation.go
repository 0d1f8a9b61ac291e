// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package continuation implements the opaque, versioned resume cursor
// threaded across a paginated covering walk. The token's logical
// contents (covering, cell index, store cursor, scanned count) are
// never encoded whole: the covering itself is recomputed fresh from the
// fingerprinted query shape on every decode, per the data model's
// "reconstructed fresh on each page" lifecycle, so the wire bytes only
// need to carry the cursor state plus enough to detect a mismatched
// query shape.
package continuation

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/spothero/geoquery"
)

// Version is the current wire format version. A token decoded with a
// different version is rejected outright.
const Version uint8 = 1

const fingerprintLen = 32

// Token is the decoded, in-memory representation of a continuation
// cursor.
type Token struct {
	CellIndex    uint32
	StoreCursor  []byte
	ScannedCount uint64
}

// Fingerprint binds a token to the exact query shape it was produced
// against: (center-or-bbox, radius, precision, codec scheme, page
// size). Presenting a token against a different shape is rejected.
type Fingerprint [fingerprintLen]byte

// NewFingerprint derives a Fingerprint from the query shape fields by
// hashing the %v rendering of each value, in the order given. Callers
// pass every field that identifies the query shape (for example the
// cap center and radius, or the box's SW/NE coordinates).
func NewFingerprint(shape ...any) Fingerprint {
	h := sha256.New()
	for _, v := range shape {
		fmt.Fprintf(h, "%v|", v)
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Encode serializes t bound to fingerprint into the base64url wire
// format: version:u8 || fingerprint:32B || cell_idx:u32 ||
// store_cursor_len:u16 || store_cursor:bytes || scanned:u64.
func Encode(t Token, fingerprint Fingerprint) (string, error) {
	if len(t.StoreCursor) > 0xFFFF {
		return "", geoquery.NewError(geoquery.ErrInvalidInput, "store cursor exceeds 65535 bytes")
	}
	buf := make([]byte, 0, 1+fingerprintLen+4+2+len(t.StoreCursor)+8)
	buf = append(buf, Version)
	buf = append(buf, fingerprint[:]...)

	var cellIdx [4]byte
	binary.BigEndian.PutUint32(cellIdx[:], t.CellIndex)
	buf = append(buf, cellIdx[:]...)

	var cursorLen [2]byte
	binary.BigEndian.PutUint16(cursorLen[:], uint16(len(t.StoreCursor)))
	buf = append(buf, cursorLen[:]...)
	buf = append(buf, t.StoreCursor...)

	var scanned [8]byte
	binary.BigEndian.PutUint64(scanned[:], t.ScannedCount)
	buf = append(buf, scanned[:]...)

	return base64.URLEncoding.EncodeToString(buf), nil
}

// Decode parses a wire token and validates it against the expected
// fingerprint, returning geoquery.ErrInvalidToken on any failure:
// malformed bytes, unknown version, fingerprint mismatch, or a
// truncated store cursor. Checks that need the covering length (a
// non-empty covering, an in-bounds cell index) are done by Validate.
func Decode(wire string, expectedFingerprint Fingerprint) (Token, error) {
	raw, err := base64.URLEncoding.DecodeString(wire)
	if err != nil {
		return Token{}, geoquery.WrapError(geoquery.ErrInvalidToken, "base64 decode", err)
	}
	minLen := 1 + fingerprintLen + 4 + 2 + 8
	if len(raw) < minLen {
		return Token{}, geoquery.NewError(geoquery.ErrInvalidToken, "token too short")
	}

	offset := 0
	version := raw[offset]
	offset++
	if version != Version {
		return Token{}, geoquery.NewError(geoquery.ErrInvalidToken, fmt.Sprintf("unknown token version %d", version))
	}

	var fp Fingerprint
	copy(fp[:], raw[offset:offset+fingerprintLen])
	offset += fingerprintLen
	if fp != expectedFingerprint {
		return Token{}, geoquery.NewError(geoquery.ErrInvalidToken, "fingerprint mismatch: token was issued for a different query")
	}

	cellIdx := binary.BigEndian.Uint32(raw[offset : offset+4])
	offset += 4

	cursorLen := int(binary.BigEndian.Uint16(raw[offset : offset+2]))
	offset += 2
	if len(raw) < offset+cursorLen+8 {
		return Token{}, geoquery.NewError(geoquery.ErrInvalidToken, "truncated store cursor")
	}
	cursor := append([]byte(nil), raw[offset:offset+cursorLen]...)
	offset += cursorLen

	scanned := binary.BigEndian.Uint64(raw[offset : offset+8])

	return Token{CellIndex: cellIdx, StoreCursor: cursor, ScannedCount: scanned}, nil
}

// Validate checks the structural invariants a decoded token must
// satisfy relative to a known covering length: a non-empty covering
// and an in-bounds cursor index. The scanned count is unsigned on the
// wire, so it is never negative and is not checked.
func Validate(t Token, coveringLen int) error {
	if coveringLen == 0 {
		return geoquery.NewError(geoquery.ErrInvalidToken, "covering is empty")
	}
	if int(t.CellIndex) >= coveringLen {
		return geoquery.NewError(geoquery.ErrInvalidToken, "cell index out of bounds")
	}
	return nil
}
