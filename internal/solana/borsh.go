package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// DiscriminatorLength is the size of an Anchor account or event tag.
const DiscriminatorLength = 8

// AnchorDiscriminator returns the first 8 bytes of sha256("<namespace>:<name>"),
// the tag Anchor programs put in front of accounts ("account") and events ("event").
func AnchorDiscriminator(namespace, name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// ErrUnexpectedEOF is returned when a borsh buffer ends before the layout does.
var ErrUnexpectedEOF = errors.New("unexpected end of borsh buffer")

// Uint128 is an unsigned 128-bit integer stored as two little-endian halves.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Uint128FromBig converts a non-negative big.Int that fits in 128 bits.
func Uint128FromBig(v *big.Int) (Uint128, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return Uint128{}, fmt.Errorf("value %s does not fit in u128", v)
	}
	lo := new(big.Int).And(v, new(big.Int).SetUint64(math.MaxUint64))
	hi := new(big.Int).Rsh(v, 64)
	return Uint128{Lo: lo.Uint64(), Hi: hi.Uint64()}, nil
}

// Big returns the value as a big.Int.
func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

// Float64 returns the nearest float64.
func (u Uint128) Float64() float64 {
	f, _ := new(big.Float).SetInt(u.Big()).Float64()
	return f
}

// String returns the decimal representation.
func (u Uint128) String() string {
	return u.Big().String()
}

// MarshalText renders the value as a decimal string so JSON keeps full precision.
func (u Uint128) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses a decimal string written by MarshalText.
func (u *Uint128) UnmarshalText(text []byte) error {
	v, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid u128 %q", text)
	}
	parsed, err := Uint128FromBig(v)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Reader decodes little-endian borsh primitives. The first failure is sticky:
// later reads return zero values and Err reports the original error.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	r.next(n)
}

// Pubkey reads a 32-byte address.
func (r *Reader) Pubkey() Pubkey {
	var pk Pubkey
	if b := r.next(PubkeyLength); b != nil {
		copy(pk[:], b)
	}
	return pk
}

// U8 reads one byte.
func (r *Reader) U8() uint8 {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

// Bool reads a borsh bool. Bytes other than 0 and 1 are rejected.
func (r *Reader) Bool() bool {
	v := r.U8()
	if r.err == nil && v > 1 {
		r.err = fmt.Errorf("invalid bool byte 0x%02x at offset %d", v, r.off-1)
		return false
	}
	return v == 1
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() uint16 {
	if b := r.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// I32 reads a little-endian int32.
func (r *Reader) I32() int32 {
	if b := r.next(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	if b := r.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// U128 reads a little-endian unsigned 128-bit integer.
func (r *Reader) U128() Uint128 {
	if b := r.next(16); b != nil {
		return Uint128{
			Lo: binary.LittleEndian.Uint64(b[:8]),
			Hi: binary.LittleEndian.Uint64(b[8:]),
		}
	}
	return Uint128{}
}

// Writer is the encoding counterpart of Reader.
type Writer struct {
	buf []byte
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Pubkey appends a 32-byte address.
func (w *Writer) Pubkey(pk Pubkey) {
	w.buf = append(w.buf, pk[:]...)
}

// U8 appends one byte.
func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

// Bool appends a borsh bool.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// U16 appends a little-endian uint16.
func (w *Writer) U16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// I32 appends a little-endian int32.
func (w *Writer) I32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// U64 appends a little-endian uint64.
func (w *Writer) U64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// U128 appends a little-endian unsigned 128-bit integer.
func (w *Writer) U128(v Uint128) {
	w.U64(v.Lo)
	w.U64(v.Hi)
}
