// Package tabular implements the on-disk CSV boundary a replay run reads
// and writes: nine readers, one per recorded event variant, and a single
// writer for finalized position segments. No third-party tabular library
// appears anywhere in this project's grounding corpus, so the boundary is
// implemented directly on encoding/csv.
package tabular

import (
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/event"
	"github.com/lilyjjo/ammreplay/internal/ledger"
)

// Paths names the nine input files and one output file a replay run reads
// and writes.
type Paths struct {
	PoolCreated       string
	Initialize        string
	Mint              string
	Burn              string
	Swap              string
	CollectPool       string
	CollectNpm        string
	IncreaseLiquidity string
	DecreaseLiquidity string
	Output            string
}

// preamble is the common prefix every input row shares: the pool/contract
// address the event was emitted against, the originating account, the
// transaction's log index, the block height, and the transaction hash.
type preamble struct {
	poolAddress common.Address
	account     common.Address
	logIndex    uint64
	block       uint64
	txHash      common.Hash
}

func readPreamble(row []string) (preamble, []string, error) {
	if len(row) < 5 {
		return preamble{}, nil, fmt.Errorf("row has %d fields, need at least 5 for the common preamble", len(row))
	}
	block, err := parseUint64(row[3])
	if err != nil {
		return preamble{}, nil, fmt.Errorf("block: %w", err)
	}
	logIndex, err := parseUint64(row[2])
	if err != nil {
		return preamble{}, nil, fmt.Errorf("log_index: %w", err)
	}
	p := preamble{
		poolAddress: common.HexToAddress(row[0]),
		account:     common.HexToAddress(row[1]),
		logIndex:    logIndex,
		block:       block,
		txHash:      common.HexToHash(row[4]),
	}
	return p, row[5:], nil
}

func (p preamble) envelope(payload event.Payload) event.SimulationEvent {
	return event.SimulationEvent{
		Block:       p.block,
		TxHash:      p.txHash,
		LogIndex:    p.logIndex,
		PoolAddress: p.poolAddress,
		From:        p.account,
		Payload:     payload,
	}
}

func parseUint64(s string) (uint64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("not a decimal integer: %q", s)
	}
	return v.Uint64(), nil
}

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	return v, nil
}

func parseInt32(s string) (int32, error) {
	v, err := parseBigInt(s)
	if err != nil {
		return 0, err
	}
	return int32(v.Int64()), nil
}

func parseUint32(s string) (uint32, error) {
	v, err := parseBigInt(s)
	if err != nil {
		return 0, err
	}
	return uint32(v.Uint64()), nil
}

func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.InputIntegrity, err, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.InputIntegrity, err, "parse %s", path)
	}
	if len(rows) > 0 {
		rows = rows[1:] // drop header
	}
	return rows, nil
}

// ReadPoolCreated parses a PoolCreated CSV file.
func ReadPoolCreated(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 4 {
			return nil, rowErr(path, i, fmt.Errorf("expected 4 fields after preamble, got %d", len(fields)))
		}
		fee, err := parseUint32(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tickSpacing, err := parseInt32(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.PoolCreated{
			Token0:      common.HexToAddress(fields[0]),
			Token1:      common.HexToAddress(fields[1]),
			Fee:         fee,
			TickSpacing: tickSpacing,
			Pool:        p.poolAddress,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadInitialize parses an Initialize CSV file.
func ReadInitialize(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 2 {
			return nil, rowErr(path, i, fmt.Errorf("expected 2 fields after preamble, got %d", len(fields)))
		}
		sqrtPrice, err := parseBigInt(fields[0])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tick, err := parseInt32(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		events = append(events, p.envelope(event.Initialize{SqrtPriceX96: sqrtPrice, Tick: tick}))
	}
	return events, nil
}

// ReadMint parses a Mint CSV file.
func ReadMint(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 6 {
			return nil, rowErr(path, i, fmt.Errorf("expected 6 fields after preamble, got %d", len(fields)))
		}
		tickLower, err := parseInt32(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tickUpper, err := parseInt32(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount, err := parseBigInt(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[4])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[5])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.Mint{
			Sender:    p.account,
			Owner:     common.HexToAddress(fields[0]),
			TickLower: tickLower,
			TickUpper: tickUpper,
			Amount:    amount,
			Amount0:   amount0,
			Amount1:   amount1,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadBurn parses a Burn CSV file.
func ReadBurn(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 6 {
			return nil, rowErr(path, i, fmt.Errorf("expected 6 fields after preamble, got %d", len(fields)))
		}
		tickLower, err := parseInt32(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tickUpper, err := parseInt32(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount, err := parseBigInt(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[4])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[5])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.Burn{
			Owner:     common.HexToAddress(fields[0]),
			TickLower: tickLower,
			TickUpper: tickUpper,
			Amount:    amount,
			Amount0:   amount0,
			Amount1:   amount1,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadSwap parses a Swap CSV file.
func ReadSwap(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 5 {
			return nil, rowErr(path, i, fmt.Errorf("expected 5 fields after preamble, got %d", len(fields)))
		}
		amount0, err := parseBigInt(fields[0])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		sqrtPrice, err := parseBigInt(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		liquidity, err := parseBigInt(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tick, err := parseInt32(fields[4])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.Swap{
			Sender:       p.account,
			Recipient:    p.account,
			Amount0:      amount0,
			Amount1:      amount1,
			SqrtPriceX96: sqrtPrice,
			Liquidity:    liquidity,
			Tick:         tick,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadCollectPool parses a pool-level Collect CSV file.
func ReadCollectPool(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 5 {
			return nil, rowErr(path, i, fmt.Errorf("expected 5 fields after preamble, got %d", len(fields)))
		}
		tickLower, err := parseInt32(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		tickUpper, err := parseInt32(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[4])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		var amount1 *big.Int
		if len(fields) > 5 {
			amount1, err = parseBigInt(fields[5])
			if err != nil {
				return nil, rowErr(path, i, err)
			}
		} else {
			amount1 = big.NewInt(0)
		}
		payload := event.CollectPool{
			Owner:     common.HexToAddress(fields[0]),
			Recipient: common.HexToAddress(fields[1]),
			TickLower: tickLower,
			TickUpper: tickUpper,
			Amount0:   amount0,
			Amount1:   amount1,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadCollectNpm parses a position-manager Collect CSV file.
func ReadCollectNpm(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 3 {
			return nil, rowErr(path, i, fmt.Errorf("expected 3 fields after preamble, got %d", len(fields)))
		}
		tokenID, err := parseBigInt(fields[0])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.CollectNpm{
			RecordedTokenID: tokenID,
			Recipient:       p.account,
			Amount0:         amount0,
			Amount1:         amount1,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadIncreaseLiquidity parses an IncreaseLiquidity CSV file. The last two
// columns carry the originator's desired input amounts, reconstructed from
// transaction calldata by the exporting tool — the event itself does not
// carry them.
func ReadIncreaseLiquidity(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 6 {
			return nil, rowErr(path, i, fmt.Errorf("expected 6 fields after preamble, got %d", len(fields)))
		}
		tokenID, err := parseBigInt(fields[0])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		liquidity, err := parseBigInt(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0Desired, err := parseBigInt(fields[4])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1Desired, err := parseBigInt(fields[5])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.IncreaseLiquidity{
			RecordedTokenID: tokenID,
			Liquidity:       liquidity,
			Amount0:         amount0,
			Amount1:         amount1,
			Amount0Desired:  amount0Desired,
			Amount1Desired:  amount1Desired,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

// ReadDecreaseLiquidity parses a DecreaseLiquidity CSV file.
func ReadDecreaseLiquidity(path string) ([]event.SimulationEvent, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	events := make([]event.SimulationEvent, 0, len(rows))
	for i, row := range rows {
		p, fields, err := readPreamble(row)
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		if len(fields) < 4 {
			return nil, rowErr(path, i, fmt.Errorf("expected 4 fields after preamble, got %d", len(fields)))
		}
		tokenID, err := parseBigInt(fields[0])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		liquidity, err := parseBigInt(fields[1])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount0, err := parseBigInt(fields[2])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		amount1, err := parseBigInt(fields[3])
		if err != nil {
			return nil, rowErr(path, i, err)
		}
		payload := event.DecreaseLiquidity{
			RecordedTokenID: tokenID,
			Liquidity:       liquidity,
			Amount0:         amount0,
			Amount1:         amount1,
		}
		events = append(events, p.envelope(payload))
	}
	return events, nil
}

func rowErr(path string, index int, err error) error {
	return errs.Wrap(errs.InputIntegrity, err, "%s row %d", filepath.Base(path), index+1)
}

// LoadAll reads all nine input files, verifies the CollectNpm/CollectPool
// count precondition, and returns the merged event stream in canonical
// (block, log_index) order.
func LoadAll(paths Paths) ([]event.SimulationEvent, error) {
	readers := []func(string) ([]event.SimulationEvent, error){
		ReadPoolCreated, ReadInitialize, ReadMint, ReadBurn, ReadSwap,
		ReadCollectPool, ReadCollectNpm, ReadIncreaseLiquidity, ReadDecreaseLiquidity,
	}
	filePaths := []string{
		paths.PoolCreated, paths.Initialize, paths.Mint, paths.Burn, paths.Swap,
		paths.CollectPool, paths.CollectNpm, paths.IncreaseLiquidity, paths.DecreaseLiquidity,
	}

	var all []event.SimulationEvent
	var collectPoolCount, collectNpmCount int
	for i, read := range readers {
		events, err := read(filePaths[i])
		if err != nil {
			return nil, err
		}
		if i == 5 {
			collectPoolCount = len(events)
		}
		if i == 6 {
			collectNpmCount = len(events)
		}
		all = append(all, events...)
	}

	if collectPoolCount != collectNpmCount {
		return nil, errs.New(errs.InputIntegrity, "CollectPool count (%d) does not match CollectNpm count (%d): positions may have been created outside the position manager", collectPoolCount, collectNpmCount)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Less(all[j]) })
	return all, nil
}

// WriteSegments writes one CSV row per non-empty segment (liquidity_in > 0)
// across every live token-id in the ledger, creating the output directory
// if it does not already exist.
func WriteSegments(path string, segmentsByToken map[string][]*ledger.Segment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.InputIntegrity, err, "create output directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.InputIntegrity, err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"live_token_id", "recorded_token_id", "segment_index", "action", "tick_lower", "tick_upper",
		"open_block", "base_amount_in", "quote_amount_in", "sqrt_price_in_x96", "tick_in", "liquidity_in",
		"close_block", "base_amount_out", "quote_amount_out", "sqrt_price_out_x96", "tick_out",
		"fees_earned_base", "fees_earned_quote", "approx_start_quote", "approx_end_quote",
		"net_gain_base", "net_gain_quote", "net_pnl_quote",
	}
	if err := w.Write(header); err != nil {
		return errs.Wrap(errs.InputIntegrity, err, "write header for %s", path)
	}

	for _, tokenID := range sortedTokenKeys(segmentsByToken) {
		for _, seg := range segmentsByToken[tokenID] {
			if seg.LiquidityIn == nil || seg.LiquidityIn.Sign() <= 0 {
				continue
			}
			row := []string{
				stringOrEmpty(seg.LiveTokenID), stringOrEmpty(seg.RecordedTokenID), fmt.Sprintf("%d", seg.Index), seg.Action.String(),
				fmt.Sprintf("%d", seg.TickLower), fmt.Sprintf("%d", seg.TickUpper),
				fmt.Sprintf("%d", seg.OpenBlock), stringOrEmpty(seg.BaseAmountIn), stringOrEmpty(seg.QuoteAmountIn),
				stringOrEmpty(seg.SqrtPriceInX96), fmt.Sprintf("%d", seg.TickIn), stringOrEmpty(seg.LiquidityIn),
				fmt.Sprintf("%d", seg.CloseBlock), stringOrEmpty(seg.BaseAmountOut), stringOrEmpty(seg.QuoteAmountOut),
				stringOrEmpty(seg.SqrtPriceOutX96), fmt.Sprintf("%d", seg.TickOut),
				stringOrEmpty(seg.FeesEarnedBase), stringOrEmpty(seg.FeesEarnedQuote),
				floatStringOrEmpty(seg.ApproxStartQuote), floatStringOrEmpty(seg.ApproxEndQuote),
				stringOrEmpty(seg.NetGainBase), stringOrEmpty(seg.NetGainQuote), floatStringOrEmpty(seg.NetPnLQuote),
			}
			if err := w.Write(row); err != nil {
				return errs.Wrap(errs.InputIntegrity, err, "write row for live token id %s", stringOrEmpty(seg.LiveTokenID))
			}
		}
	}
	return w.Error()
}

// segmentAuditSink is the subset of recorder.MySQLRecorder's behavior used
// to mirror written rows into the audit trail; kept local so this package
// does not depend on internal/recorder or a live database in tests.
type segmentAuditSink interface {
	RecordSegment(seg *ledger.Segment)
}

// WriteSegmentsAudited writes the CSV output exactly as WriteSegments does,
// then mirrors every row actually written into sink. sink may be nil, in
// which case this is equivalent to WriteSegments. The CSV file is always
// the authoritative output; a nil or failing sink never affects it.
func WriteSegmentsAudited(path string, segmentsByToken map[string][]*ledger.Segment, sink segmentAuditSink) error {
	if err := WriteSegments(path, segmentsByToken); err != nil {
		return err
	}
	if sink == nil {
		return nil
	}
	for _, tokenID := range sortedTokenKeys(segmentsByToken) {
		for _, seg := range segmentsByToken[tokenID] {
			if seg.LiquidityIn == nil || seg.LiquidityIn.Sign() <= 0 {
				continue
			}
			sink.RecordSegment(seg)
		}
	}
	return nil
}

// sortedTokenKeys orders segmentsByToken's live-token-id keys numerically so
// repeated writes of the same ledger produce byte-identical output; map
// iteration order is otherwise randomized per run.
func sortedTokenKeys(segmentsByToken map[string][]*ledger.Segment) []string {
	keys := make([]string, 0, len(segmentsByToken))
	for k := range segmentsByToken {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aOK := new(big.Int).SetString(keys[i], 10)
		b, bOK := new(big.Int).SetString(keys[j], 10)
		if aOK && bOK {
			return a.Cmp(b) < 0
		}
		return keys[i] < keys[j]
	})
	return keys
}

func stringOrEmpty(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func floatStringOrEmpty(v *big.Float) string {
	if v == nil {
		return ""
	}
	return v.Text('f', -1)
}
