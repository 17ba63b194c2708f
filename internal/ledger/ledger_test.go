package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilyjjo/ammreplay/internal/errs"
)

func TestRegisterAndResolveTokenID(t *testing.T) {
	l := New()
	recorded := big.NewInt(7)
	live := big.NewInt(42)

	require.NoError(t, l.RegisterTokenID(recorded, live))

	got, err := l.LiveTokenID(recorded)
	require.NoError(t, err)
	assert.Equal(t, 0, live.Cmp(got))
}

func TestRegisterTokenIDRejectsDuplicate(t *testing.T) {
	l := New()
	recorded := big.NewInt(1)
	require.NoError(t, l.RegisterTokenID(recorded, big.NewInt(1)))

	err := l.RegisterTokenID(recorded, big.NewInt(2))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LedgerInconsistency))
}

func TestLiveTokenIDUnknown(t *testing.T) {
	l := New()
	_, err := l.LiveTokenID(big.NewInt(99))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LedgerInconsistency))
}

func TestAppendSegmentSequencing(t *testing.T) {
	l := New()
	live := big.NewInt(1)

	seg1 := &Segment{Action: ActionOpen}
	require.NoError(t, l.AppendSegment(live, seg1))
	assert.Equal(t, 0, seg1.Index)

	err := l.AppendSegment(live, &Segment{Action: ActionIncreaseLiquidity})
	require.Error(t, err, "cannot append a second segment while the first is open")

	seg1.Closed = true
	seg2 := &Segment{Action: ActionIncreaseLiquidity}
	require.NoError(t, l.AppendSegment(live, seg2))
	assert.Equal(t, 1, seg2.Index)
}

func TestActiveOpenSegmentGuard(t *testing.T) {
	l := New()
	live := big.NewInt(1)
	require.NoError(t, l.AppendSegment(live, &Segment{Action: ActionOpen}))

	seg, err := l.ActiveOpenSegment(live)
	require.NoError(t, err)
	assert.Equal(t, ActionOpen, seg.Action)

	seg.Closed = true
	_, err = l.ActiveOpenSegment(live)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LedgerInconsistency))
}

func TestOpenLiveTokenIDs(t *testing.T) {
	l := New()
	open := big.NewInt(1)
	closed := big.NewInt(2)

	require.NoError(t, l.AppendSegment(open, &Segment{Action: ActionOpen}))
	require.NoError(t, l.AppendSegment(closed, &Segment{Action: ActionOpen, Closed: true}))

	ids := l.OpenLiveTokenIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, 0, ids[0].Cmp(open))
}
