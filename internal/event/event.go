// Package event holds the ordered stream of on-chain pool and position-manager
// occurrences the replay driver consumes, generalized from the fee-analysis
// event sum this repository is grounded on.
package event

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Type tags which variant a SimulationEvent's payload holds.
type Type int

const (
	TypePoolCreated Type = iota
	TypeInitialize
	TypeMint
	TypeBurn
	TypeSwap
	TypeCollectPool
	TypeCollectNpm
	TypeIncreaseLiquidity
	TypeDecreaseLiquidity
)

func (t Type) String() string {
	switch t {
	case TypePoolCreated:
		return "PoolCreated"
	case TypeInitialize:
		return "Initialize"
	case TypeMint:
		return "Mint"
	case TypeBurn:
		return "Burn"
	case TypeSwap:
		return "Swap"
	case TypeCollectPool:
		return "CollectPool"
	case TypeCollectNpm:
		return "CollectNpm"
	case TypeIncreaseLiquidity:
		return "IncreaseLiquidity"
	case TypeDecreaseLiquidity:
		return "DecreaseLiquidity"
	default:
		return "Unknown"
	}
}

// PoolCreated records the factory's pool-creation event.
type PoolCreated struct {
	Token0     common.Address
	Token1     common.Address
	Fee        uint32
	TickSpacing int32
	Pool       common.Address
}

// Initialize records the pool's first price-setting event.
type Initialize struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

// Mint records a pool-level Mint event (the liquidity-provisioning primitive
// the position manager's mint/increaseLiquidity calls ultimately emit).
type Mint struct {
	Sender     common.Address
	Owner      common.Address
	TickLower  int32
	TickUpper  int32
	Amount     *big.Int
	Amount0    *big.Int
	Amount1    *big.Int
}

// Burn records a pool-level Burn event.
type Burn struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Amount    *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// Swap records a pool-level Swap event. Amount0/Amount1 are signed: negative
// means the pool paid that side out.
type Swap struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// CollectPool records a pool-level Collect event (fee withdrawal to recipient).
type CollectPool struct {
	Owner     common.Address
	Recipient common.Address
	TickLower int32
	TickUpper int32
	Amount0   *big.Int
	Amount1   *big.Int
}

// CollectNpm records a position-manager Collect event keyed by token-id.
type CollectNpm struct {
	RecordedTokenID *big.Int
	Recipient       common.Address
	Amount0         *big.Int
	Amount1         *big.Int
}

// IncreaseLiquidity records a position-manager IncreaseLiquidity event, plus
// the originating transaction's desired input amounts — the mint/increase
// calldata is keyed on desireds, which the event itself does not carry.
type IncreaseLiquidity struct {
	RecordedTokenID  *big.Int
	Liquidity        *big.Int
	Amount0          *big.Int
	Amount1          *big.Int
	Amount0Desired   *big.Int
	Amount1Desired   *big.Int
}

// DecreaseLiquidity records a position-manager DecreaseLiquidity event.
type DecreaseLiquidity struct {
	RecordedTokenID *big.Int
	Liquidity       *big.Int
	Amount0         *big.Int
	Amount1         *big.Int
}

// Payload is implemented by every concrete event variant.
type Payload interface {
	Type() Type
}

func (PoolCreated) Type() Type       { return TypePoolCreated }
func (Initialize) Type() Type        { return TypeInitialize }
func (Mint) Type() Type              { return TypeMint }
func (Burn) Type() Type              { return TypeBurn }
func (Swap) Type() Type              { return TypeSwap }
func (CollectPool) Type() Type       { return TypeCollectPool }
func (CollectNpm) Type() Type        { return TypeCollectNpm }
func (IncreaseLiquidity) Type() Type { return TypeIncreaseLiquidity }
func (DecreaseLiquidity) Type() Type { return TypeDecreaseLiquidity }

// SimulationEvent is the envelope every replayed occurrence travels in.
type SimulationEvent struct {
	Block       uint64
	TxHash      common.Hash
	LogIndex    uint64
	PoolAddress common.Address
	From        common.Address
	Payload     Payload
}

// Less orders events by (block, log_index), the stream's canonical order.
func (e SimulationEvent) Less(other SimulationEvent) bool {
	if e.Block != other.Block {
		return e.Block < other.Block
	}
	return e.LogIndex < other.LogIndex
}

// ConversionError reports that a SimulationEvent's payload did not hold the
// variant a caller asked to narrow it to.
type ConversionError struct {
	Want Type
	Got  Type
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("event: expected %s, got %s", e.Want, e.Got)
}

// AsMint narrows a SimulationEvent's payload to Mint, or returns a
// ConversionError.
func AsMint(e SimulationEvent) (Mint, error) {
	if m, ok := e.Payload.(Mint); ok {
		return m, nil
	}
	return Mint{}, &ConversionError{Want: TypeMint, Got: e.Payload.Type()}
}

// AsBurn narrows a SimulationEvent's payload to Burn, or returns a
// ConversionError.
func AsBurn(e SimulationEvent) (Burn, error) {
	if b, ok := e.Payload.(Burn); ok {
		return b, nil
	}
	return Burn{}, &ConversionError{Want: TypeBurn, Got: e.Payload.Type()}
}

// AsSwap narrows a SimulationEvent's payload to Swap, or returns a
// ConversionError.
func AsSwap(e SimulationEvent) (Swap, error) {
	if s, ok := e.Payload.(Swap); ok {
		return s, nil
	}
	return Swap{}, &ConversionError{Want: TypeSwap, Got: e.Payload.Type()}
}

// AsCollectPool narrows a SimulationEvent's payload to CollectPool, or
// returns a ConversionError.
func AsCollectPool(e SimulationEvent) (CollectPool, error) {
	if c, ok := e.Payload.(CollectPool); ok {
		return c, nil
	}
	return CollectPool{}, &ConversionError{Want: TypeCollectPool, Got: e.Payload.Type()}
}

// AsCollectNpm narrows a SimulationEvent's payload to CollectNpm, or returns
// a ConversionError.
func AsCollectNpm(e SimulationEvent) (CollectNpm, error) {
	if c, ok := e.Payload.(CollectNpm); ok {
		return c, nil
	}
	return CollectNpm{}, &ConversionError{Want: TypeCollectNpm, Got: e.Payload.Type()}
}

// AsIncreaseLiquidity narrows a SimulationEvent's payload to
// IncreaseLiquidity, or returns a ConversionError.
func AsIncreaseLiquidity(e SimulationEvent) (IncreaseLiquidity, error) {
	if i, ok := e.Payload.(IncreaseLiquidity); ok {
		return i, nil
	}
	return IncreaseLiquidity{}, &ConversionError{Want: TypeIncreaseLiquidity, Got: e.Payload.Type()}
}

// AsDecreaseLiquidity narrows a SimulationEvent's payload to
// DecreaseLiquidity, or returns a ConversionError.
func AsDecreaseLiquidity(e SimulationEvent) (DecreaseLiquidity, error) {
	if d, ok := e.Payload.(DecreaseLiquidity); ok {
		return d, nil
	}
	return DecreaseLiquidity{}, &ConversionError{Want: TypeDecreaseLiquidity, Got: e.Payload.Type()}
}

// AsPoolCreated narrows a SimulationEvent's payload to PoolCreated, or
// returns a ConversionError.
func AsPoolCreated(e SimulationEvent) (PoolCreated, error) {
	if p, ok := e.Payload.(PoolCreated); ok {
		return p, nil
	}
	return PoolCreated{}, &ConversionError{Want: TypePoolCreated, Got: e.Payload.Type()}
}

// AsInitialize narrows a SimulationEvent's payload to Initialize, or returns
// a ConversionError.
func AsInitialize(e SimulationEvent) (Initialize, error) {
	if i, ok := e.Payload.(Initialize); ok {
		return i, nil
	}
	return Initialize{}, &ConversionError{Want: TypeInitialize, Got: e.Payload.Type()}
}

// FindFirst returns the first event of the given type in events, in order.
func FindFirst(events []SimulationEvent, t Type) (SimulationEvent, bool) {
	for _, e := range events {
		if e.Payload.Type() == t {
			return e, true
		}
	}
	return SimulationEvent{}, false
}

// Sorted reports whether events is already in canonical (block, log_index)
// order; the tabular readers must produce output satisfying this.
func Sorted(events []SimulationEvent) bool {
	for i := 1; i < len(events); i++ {
		if events[i].Less(events[i-1]) {
			return false
		}
	}
	return true
}
