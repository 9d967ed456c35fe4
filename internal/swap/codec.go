package swap

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"clmm-swap-collector/internal/solana"
)

// ProgramDataPrefix marks log lines that carry base64 encoded event data.
const ProgramDataPrefix = "Program data: "

// DiscriminatorSize is the length of the event tag in front of the payload.
const DiscriminatorSize = solana.DiscriminatorLength

// EventSize is the encoded size of SwapEvent without the discriminator.
const EventSize = 4*solana.PubkeyLength + 4*8 + 1 + 2*16 + 4

// Decode outcomes. ErrNotProgramData and ErrOtherEvent only mean the line is
// not a swap event; the others mean a program data line could not be read.
var (
	ErrNotProgramData = errors.New("not a program data line")
	ErrInvalidBase64  = errors.New("invalid base64 payload")
	ErrShortPayload   = errors.New("payload shorter than discriminator")
	ErrOtherEvent     = errors.New("discriminator is not SwapEvent")
	ErrMalformedEvent = errors.New("malformed SwapEvent payload")
)

// EventDiscriminator returns the first 8 bytes of sha256("event:<name>").
func EventDiscriminator(name string) [DiscriminatorSize]byte {
	return solana.AnchorDiscriminator("event", name)
}

// SwapEventDiscriminator tags SwapEvent payloads.
var SwapEventDiscriminator = EventDiscriminator("SwapEvent")

// DecodeLine extracts a SwapEvent from one log line.
func DecodeLine(line string) (SwapEvent, error) {
	payload, ok := strings.CutPrefix(line, ProgramDataPrefix)
	if !ok {
		return SwapEvent{}, ErrNotProgramData
	}

	// Nodes never pad the payload; trimming lets hand-fed lines with a trailing CR decode.
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return SwapEvent{}, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	var ev SwapEvent
	if err := ev.UnmarshalBinary(data); err != nil {
		return SwapEvent{}, err
	}
	return ev, nil
}

// Decode is DecodeLine reduced to a match flag.
func Decode(line string) (SwapEvent, bool) {
	ev, err := DecodeLine(line)
	return ev, err == nil
}

// UnmarshalBinary reads a discriminator-prefixed SwapEvent. Trailing bytes are ignored.
func (e *SwapEvent) UnmarshalBinary(data []byte) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPayload, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], SwapEventDiscriminator[:]) {
		return ErrOtherEvent
	}

	r := solana.NewReader(data[DiscriminatorSize:])
	ev := SwapEvent{
		PoolState:     r.Pubkey(),
		Sender:        r.Pubkey(),
		TokenAccount0: r.Pubkey(),
		TokenAccount1: r.Pubkey(),
		Amount0:       r.U64(),
		TransferFee0:  r.U64(),
		Amount1:       r.U64(),
		TransferFee1:  r.U64(),
		ZeroForOne:    r.Bool(),
		SqrtPriceX64:  r.U128(),
		Liquidity:     r.U128(),
		Tick:          r.I32(),
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	*e = ev
	return nil
}

// MarshalBinary encodes the event with its discriminator.
func (e SwapEvent) MarshalBinary() ([]byte, error) {
	var w solana.Writer
	w.Raw(SwapEventDiscriminator[:])
	w.Pubkey(e.PoolState)
	w.Pubkey(e.Sender)
	w.Pubkey(e.TokenAccount0)
	w.Pubkey(e.TokenAccount1)
	w.U64(e.Amount0)
	w.U64(e.TransferFee0)
	w.U64(e.Amount1)
	w.U64(e.TransferFee1)
	w.Bool(e.ZeroForOne)
	w.U128(e.SqrtPriceX64)
	w.U128(e.Liquidity)
	w.I32(e.Tick)
	return w.Bytes(), nil
}

// EncodeLine renders the event as the program data log line the CLMM program emits.
func EncodeLine(e SwapEvent) string {
	data, _ := e.MarshalBinary()
	return ProgramDataPrefix + base64.StdEncoding.EncodeToString(data)
}
