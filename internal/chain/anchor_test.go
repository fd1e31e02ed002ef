package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestInstructionDiscriminator(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("global:mint_item"))
	got := InstructionDiscriminator("mint_item")
	if !bytes.Equal(got[:], sum[:8]) {
		t.Errorf("discriminator = %x, want %x", got, sum[:8])
	}
	if InstructionDiscriminator("attack") == InstructionDiscriminator("update_level") {
		t.Error("different methods must have different discriminators")
	}
}

func TestEncodeInstruction_BorshLayout(t *testing.T) {
	t.Parallel()

	data, err := EncodeInstruction("register_player", RegisterPlayerArgs{Name: "ada"})
	if err != nil {
		t.Fatal(err)
	}
	disc := InstructionDiscriminator("register_player")
	if !bytes.Equal(data[:8], disc[:]) {
		t.Fatal("missing discriminator prefix")
	}
	// borsh string: u32 little-endian length then bytes.
	if n := binary.LittleEndian.Uint32(data[8:12]); n != 3 {
		t.Errorf("string length = %d, want 3", n)
	}
	if string(data[12:]) != "ada" {
		t.Errorf("string body = %q", data[12:])
	}

	data, err = EncodeInstruction("attack", AttackArgs{Damage: 7})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 9 || data[8] != 7 {
		t.Errorf("attack data = %x", data)
	}

	noArgs, err := EncodeInstruction("initialize", nil)
	if err != nil || len(noArgs) != 8 {
		t.Errorf("no-arg instruction = %x, %v", noArgs, err)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	t.Parallel()

	owner := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	in := &PlayerState{Owner: owner, Name: "hero", Level: 4}

	data, err := EncodeAccount(in)
	if err != nil {
		t.Fatal(err)
	}

	var out PlayerState
	if err := DecodeAccount(data, &out); err != nil {
		t.Fatalf("DecodeAccount: %v", err)
	}
	if out.Owner != owner || out.Name != "hero" || out.Level != 4 {
		t.Errorf("decoded = %+v", out)
	}
}

func TestDecodeAccount_Mismatch(t *testing.T) {
	t.Parallel()

	var out PlayerState
	if err := DecodeAccount([]byte{1, 2, 3}, &out); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Errorf("short data: %v", err)
	}
	if err := DecodeAccount(make([]byte, 64), &out); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Errorf("zero discriminator: %v", err)
	}
}
