package solana

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"filippo.io/edwards25519"
)

func TestParsePubkey(t *testing.T) {
	valid := []string{
		"8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj",
		"So11111111111111111111111111111111111111112",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK",
	}
	for _, s := range valid {
		pk, err := ParsePubkey(s)
		if err != nil {
			t.Errorf("ParsePubkey(%q): %v", s, err)
			continue
		}
		if pk.String() != s {
			t.Errorf("String() = %s, want %s", pk.String(), s)
		}
		if pk.IsZero() {
			t.Errorf("%s reported zero", s)
		}
	}

	invalid := []string{
		"",
		"abc",
		"0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl",
		"8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj8sLb",
	}
	for _, s := range invalid {
		if _, err := ParsePubkey(s); err == nil {
			t.Errorf("ParsePubkey(%q) expected error", s)
		}
	}
}

func TestMustParsePubkey_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParsePubkey("not-a-key")
}

func TestPubkey_JSON(t *testing.T) {
	type wrapper struct {
		Pool Pubkey `json:"pool"`
	}
	in := wrapper{Pool: MustParsePubkey("8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj")}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"pool":"8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj"}` {
		t.Errorf("json = %s", data)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	if err := json.Unmarshal([]byte(`{"pool":"short"}`), &out); err == nil {
		t.Error("expected error for short pubkey")
	}
}

func TestIsOnCurve(t *testing.T) {
	var base Pubkey
	copy(base[:], edwards25519.NewGeneratorPoint().Bytes())
	if !IsOnCurve(base) {
		t.Error("generator point should be on curve")
	}

	pda, _, err := FindProgramAddress([][]byte{[]byte("pool")}, base)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if IsOnCurve(pda) {
		t.Error("program address should be off curve")
	}
}

func TestFindProgramAddress(t *testing.T) {
	program := MustParsePubkey("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	mint0 := MustParsePubkey("So11111111111111111111111111111111111111112")
	mint1 := MustParsePubkey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	seeds := [][]byte{[]byte("pool"), mint0[:], mint1[:]}

	addr, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if IsOnCurve(addr) {
		t.Error("derived address is on curve")
	}

	again, err := CreateProgramAddress(append(seeds, []byte{bump}), program)
	if err != nil {
		t.Fatalf("CreateProgramAddress with bump %d: %v", bump, err)
	}
	if again != addr {
		t.Errorf("CreateProgramAddress = %s, want %s", again, addr)
	}

	// Every higher bump must have landed on the curve.
	for b := 255; b > int(bump); b-- {
		if _, err := CreateProgramAddress(append(seeds, []byte{byte(b)}), program); err == nil {
			t.Errorf("bump %d is viable but %d was returned", b, bump)
		}
	}

	swapped, _, err := FindProgramAddress([][]byte{[]byte("pool"), mint1[:], mint0[:]}, program)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if swapped == addr {
		t.Error("seed order must change the address")
	}
}

func TestCreateProgramAddress_SeedTooLong(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, 33)}, Pubkey{})
	if err == nil || !strings.Contains(err.Error(), "exceeds 32 bytes") {
		t.Errorf("err = %v", err)
	}

	_, _, err = FindProgramAddress([][]byte{make([]byte, 33)}, Pubkey{})
	if !errors.Is(err, ErrNoViableBump) {
		t.Errorf("err = %v, want ErrNoViableBump", err)
	}
}
