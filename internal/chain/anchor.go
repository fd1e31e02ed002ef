package chain

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// DiscriminatorSize is the length of an Anchor discriminator.
const DiscriminatorSize = 8

// InstructionDiscriminator returns the Anchor selector for method:
// the first 8 bytes of sha256("global:<method>").
func InstructionDiscriminator(method string) [DiscriminatorSize]byte {
	return discriminator("global:" + method)
}

// AccountDiscriminator returns the Anchor account tag for name:
// the first 8 bytes of sha256("account:<Name>").
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// EncodeInstruction builds instruction data: discriminator then borsh args.
func EncodeInstruction(method string, args any) ([]byte, error) {
	d := InstructionDiscriminator(method)
	data := append([]byte(nil), d[:]...)
	if args == nil {
		return data, nil
	}
	encoded, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("chain: encode %s args: %w", method, err)
	}
	return append(data, encoded...), nil
}

// DecodeAccount verifies the discriminator of data and borsh-decodes the
// remainder into out.
func DecodeAccount(data []byte, out Account) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: %d bytes", ErrDiscriminatorMismatch, len(data))
	}
	want := AccountDiscriminator(out.AccountName())
	if !bytes.Equal(data[:DiscriminatorSize], want[:]) {
		return fmt.Errorf("%w: expected %s", ErrDiscriminatorMismatch, out.AccountName())
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(out); err != nil {
		return fmt.Errorf("chain: decode %s: %w", out.AccountName(), err)
	}
	return nil
}

// EncodeAccount is the inverse of DecodeAccount. Used to build fixtures.
func EncodeAccount(acc Account) ([]byte, error) {
	d := AccountDiscriminator(acc.AccountName())
	body, err := bin.MarshalBorsh(acc)
	if err != nil {
		return nil, fmt.Errorf("chain: encode %s: %w", acc.AccountName(), err)
	}
	return append(d[:], body...), nil
}
