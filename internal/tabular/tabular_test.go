package tabular

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilyjjo/ammreplay/internal/event"
	"github.com/lilyjjo/ammreplay/internal/ledger"
)

func writeCSV(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				_, err := f.WriteString(",")
				require.NoError(t, err)
			}
			_, err := f.WriteString(field)
			require.NoError(t, err)
		}
		_, err := f.WriteString("\n")
		require.NoError(t, err)
	}
	return path
}

const addrA = "0x1111111111111111111111111111111111111111"
const addrB = "0x2222222222222222222222222222222222222222"
const txHash = "0x3333333333333333333333333333333333333333333333333333333333333"

func TestReadMintParsesFields(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "mint.csv", [][]string{
		{"pool", "account", "log_index", "block", "tx_hash", "owner", "tick_lower", "tick_upper", "amount", "amount0", "amount1"},
		{addrA, addrB, "2", "100", txHash, addrB, "-60", "60", "1000", "500", "600"},
	})

	events, err := ReadMint(path)
	require.NoError(t, err)
	require.Len(t, events, 1)

	mint, err := event.AsMint(events[0])
	require.NoError(t, err)
	assert.Equal(t, int32(-60), mint.TickLower)
	assert.Equal(t, int32(60), mint.TickUpper)
	assert.Equal(t, "500", mint.Amount0.String())
	assert.Equal(t, "600", mint.Amount1.String())
	assert.Equal(t, uint64(100), events[0].Block)
	assert.Equal(t, uint64(2), events[0].LogIndex)
}

func TestReadSwapParsesSignedAmounts(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "swap.csv", [][]string{
		{"header"},
		{addrA, addrB, "0", "50", txHash, "-1000", "2000", "79228162514264337593543950336", "12345", "10"},
	})

	events, err := ReadSwap(path)
	require.NoError(t, err)
	require.Len(t, events, 1)

	swap, err := event.AsSwap(events[0])
	require.NoError(t, err)
	assert.Equal(t, "-1000", swap.Amount0.String())
	assert.Equal(t, "2000", swap.Amount1.String())
	assert.Equal(t, int32(10), swap.Tick)
}

func TestLoadAllRejectsCollectCountMismatch(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PoolCreated:       writeCSV(t, dir, "pc.csv", [][]string{{"h"}, {addrA, addrB, "0", "1", txHash, addrA, addrB, "3000", "60"}}),
		Initialize:        writeCSV(t, dir, "init.csv", [][]string{{"h"}, {addrA, addrB, "0", "2", txHash, "79228162514264337593543950336", "0"}}),
		Mint:              writeCSV(t, dir, "mint.csv", [][]string{{"h"}}),
		Burn:              writeCSV(t, dir, "burn.csv", [][]string{{"h"}}),
		Swap:              writeCSV(t, dir, "swap.csv", [][]string{{"h"}}),
		CollectPool:       writeCSV(t, dir, "cp.csv", [][]string{{"h"}, {addrA, addrB, "0", "3", txHash, addrB, addrB, "-60", "60", "1", "2"}}),
		CollectNpm:        writeCSV(t, dir, "cn.csv", [][]string{{"h"}}),
		IncreaseLiquidity: writeCSV(t, dir, "il.csv", [][]string{{"h"}}),
		DecreaseLiquidity: writeCSV(t, dir, "dl.csv", [][]string{{"h"}}),
	}

	_, err := LoadAll(paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CollectPool count")
}

func TestLoadAllMergesAndSorts(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PoolCreated:       writeCSV(t, dir, "pc.csv", [][]string{{"h"}, {addrA, addrB, "0", "1", txHash, addrA, addrB, "3000", "60"}}),
		Initialize:        writeCSV(t, dir, "init.csv", [][]string{{"h"}, {addrA, addrB, "0", "2", txHash, "79228162514264337593543950336", "0"}}),
		Mint:              writeCSV(t, dir, "mint.csv", [][]string{{"h"}, {addrA, addrB, "0", "3", txHash, addrB, "-60", "60", "1000", "500", "600"}}),
		Burn:              writeCSV(t, dir, "burn.csv", [][]string{{"h"}}),
		Swap:              writeCSV(t, dir, "swap.csv", [][]string{{"h"}}),
		CollectPool:       writeCSV(t, dir, "cp.csv", [][]string{{"h"}}),
		CollectNpm:        writeCSV(t, dir, "cn.csv", [][]string{{"h"}}),
		IncreaseLiquidity: writeCSV(t, dir, "il.csv", [][]string{{"h"}, {addrA, addrB, "1", "3", txHash, "1", "1000", "500", "600", "500", "600"}}),
		DecreaseLiquidity: writeCSV(t, dir, "dl.csv", [][]string{{"h"}}),
	}

	events, err := LoadAll(paths)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.True(t, event.Sorted(events))
	assert.Equal(t, event.TypePoolCreated, events[0].Payload.Type())
	assert.Equal(t, event.TypeInitialize, events[1].Payload.Type())
	assert.Equal(t, event.TypeMint, events[2].Payload.Type())
	assert.Equal(t, event.TypeIncreaseLiquidity, events[3].Payload.Type())
}

func TestWriteSegmentsSkipsZeroLiquidity(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "segments.csv")

	segments := map[string][]*ledger.Segment{
		"1": {
			{
				LiveTokenID: big.NewInt(1), Action: ledger.ActionOpen, LiquidityIn: big.NewInt(1000),
				BaseAmountIn: big.NewInt(100), QuoteAmountIn: big.NewInt(200),
				ApproxStartQuote: big.NewFloat(300), NetGainBase: big.NewInt(0), NetGainQuote: big.NewInt(0),
			},
			{
				LiveTokenID: big.NewInt(1), Action: ledger.ActionClosePosition, LiquidityIn: big.NewInt(0),
			},
		},
	}

	require.NoError(t, WriteSegments(out, segments))

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := string(contents)
	assert.Contains(t, lines, "Open")
	assert.NotContains(t, lines, "ClosePosition")
}

type fakeAuditSink struct {
	recorded []*ledger.Segment
}

func (f *fakeAuditSink) RecordSegment(seg *ledger.Segment) {
	f.recorded = append(f.recorded, seg)
}

func TestWriteSegmentsAuditedMirrorsOnlyWrittenRows(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "segments.csv")

	segments := map[string][]*ledger.Segment{
		"1": {
			{LiveTokenID: big.NewInt(1), Action: ledger.ActionOpen, LiquidityIn: big.NewInt(1000)},
			{LiveTokenID: big.NewInt(1), Action: ledger.ActionClosePosition, LiquidityIn: big.NewInt(0)},
		},
	}

	sink := &fakeAuditSink{}
	require.NoError(t, WriteSegmentsAudited(out, segments, sink))
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, ledger.ActionOpen, sink.recorded[0].Action)
}

func TestWriteSegmentsAuditedToleratesNilSink(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "segments.csv")
	segments := map[string][]*ledger.Segment{
		"1": {{LiveTokenID: big.NewInt(1), Action: ledger.ActionOpen, LiquidityIn: big.NewInt(1000)}},
	}
	assert.NoError(t, WriteSegmentsAudited(out, segments, nil))
}
