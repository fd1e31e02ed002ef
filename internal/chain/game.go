package chain

import "github.com/gagliardetto/solana-go"

// Instruction argument layouts of the game programs. Field order is the
// borsh wire order.
type (
	MintItemArgs struct {
		Bump uint8
	}
	RegisterPlayerArgs struct {
		Name string
	}
	UpdateLevelArgs struct {
		NewLevel uint8
	}
	AttackArgs struct {
		Damage uint8
	}
)

// PlayerState is the state program's player account.
type PlayerState struct {
	Owner solana.PublicKey
	Name  string
	Level uint8
}

// AccountName implements Account.
func (*PlayerState) AccountName() string { return "PlayerState" }

// CombatState is the behavior program's view of a player. On chain it is
// also named PlayerState.
type CombatState struct {
	Owner solana.PublicKey
	HP    uint8
}

// AccountName implements Account.
func (*CombatState) AccountName() string { return "PlayerState" }
