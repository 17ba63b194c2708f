// Package ledger tracks, for every live position token-id, the ordered
// sequence of liquidity segments it has passed through, plus the mapping
// from the original chain's recorded token-ids to the ids the forked node
// actually minted during replay.
package ledger

import (
	"math/big"

	"github.com/lilyjjo/ammreplay/internal/errs"
)

// Action names which kind of lifecycle event opened a segment.
type Action int

const (
	ActionOpen Action = iota
	ActionIncreaseLiquidity
	ActionDecreaseLiquidity
	ActionClosePosition
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "Open"
	case ActionIncreaseLiquidity:
		return "IncreaseLiquidity"
	case ActionDecreaseLiquidity:
		return "DecreaseLiquidity"
	case ActionClosePosition:
		return "ClosePosition"
	default:
		return "Unknown"
	}
}

// Segment is one maximal interval of a position's life over which its
// liquidity is constant.
type Segment struct {
	LiveTokenID     *big.Int
	RecordedTokenID *big.Int
	Index           int
	Action          Action
	Closed          bool
	TickLower       int32
	TickUpper       int32

	OpenBlock      uint64
	BaseAmountIn   *big.Int
	QuoteAmountIn  *big.Int
	SqrtPriceInX96 *big.Int
	TickIn         int32
	LiquidityIn    *big.Int

	CloseBlock      uint64
	BaseAmountOut   *big.Int
	QuoteAmountOut  *big.Int
	SqrtPriceOutX96 *big.Int
	TickOut         int32

	FeesEarnedBase  *big.Int
	FeesEarnedQuote *big.Int
	ApproxStartQuote *big.Float
	ApproxEndQuote   *big.Float
	NetGainBase      *big.Int
	NetGainQuote     *big.Int
	NetPnLQuote      *big.Float
}

// Ledger owns the two mappings described in the position-ledger design: a
// recorded-to-live token-id translation, and a per-live-token-id append-only
// segment list.
type Ledger struct {
	tokenIDMap map[string]*big.Int
	segments   map[string][]*Segment
}

// New builds an empty Ledger.
func New() *Ledger {
	return &Ledger{
		tokenIDMap: make(map[string]*big.Int),
		segments:   make(map[string][]*Segment),
	}
}

// RegisterTokenID records the recorded-to-live token-id mapping for a
// freshly minted position. It is an error to register the same recorded id
// twice.
func (l *Ledger) RegisterTokenID(recordedTokenID, liveTokenID *big.Int) error {
	key := recordedTokenID.String()
	if _, ok := l.tokenIDMap[key]; ok {
		return errs.New(errs.LedgerInconsistency, "recorded token id %s already mapped to a live token id", key)
	}
	l.tokenIDMap[key] = new(big.Int).Set(liveTokenID)
	return nil
}

// LiveTokenID resolves a recorded token-id to its live counterpart.
func (l *Ledger) LiveTokenID(recordedTokenID *big.Int) (*big.Int, error) {
	live, ok := l.tokenIDMap[recordedTokenID.String()]
	if !ok {
		return nil, errs.New(errs.LedgerInconsistency, "unknown recorded token id %s", recordedTokenID.String())
	}
	return live, nil
}

// AppendSegment appends a new segment for liveTokenID. It is an error to
// append when the current last segment (if any) is not closed.
func (l *Ledger) AppendSegment(liveTokenID *big.Int, seg *Segment) error {
	key := liveTokenID.String()
	existing := l.segments[key]
	if len(existing) > 0 && !existing[len(existing)-1].Closed {
		return errs.New(errs.LedgerInconsistency, "cannot append segment for live token id %s: active segment already open", key)
	}
	seg.LiveTokenID = new(big.Int).Set(liveTokenID)
	seg.Index = len(existing)
	l.segments[key] = append(existing, seg)
	return nil
}

// ActiveSegment returns the last (possibly open) segment for liveTokenID.
func (l *Ledger) ActiveSegment(liveTokenID *big.Int) (*Segment, error) {
	key := liveTokenID.String()
	existing := l.segments[key]
	if len(existing) == 0 {
		return nil, errs.New(errs.LedgerInconsistency, "no segments recorded for live token id %s", key)
	}
	return existing[len(existing)-1], nil
}

// ActiveOpenSegment returns the active segment and errors if it is already
// closed — the guard every increase/decrease handler must pass before
// mutating a segment in place.
func (l *Ledger) ActiveOpenSegment(liveTokenID *big.Int) (*Segment, error) {
	seg, err := l.ActiveSegment(liveTokenID)
	if err != nil {
		return nil, err
	}
	if seg.Closed {
		return nil, errs.New(errs.LedgerInconsistency, "active segment for live token id %s is already closed", liveTokenID.String())
	}
	return seg, nil
}

// AllSegments returns every live-token-id's segment slice, keyed by live
// token-id string, for finalization and output.
func (l *Ledger) AllSegments() map[string][]*Segment {
	return l.segments
}

// OpenLiveTokenIDs returns the live token-ids with a currently-open
// (non-closed) active segment, used to drive end-of-stream finalization.
func (l *Ledger) OpenLiveTokenIDs() []*big.Int {
	var open []*big.Int
	for _, segs := range l.segments {
		if len(segs) == 0 {
			continue
		}
		last := segs[len(segs)-1]
		if !last.Closed {
			open = append(open, last.LiveTokenID)
		}
	}
	return open
}
