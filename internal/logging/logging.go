// Package logging builds the single threaded zerolog.Logger passed down
// through constructors.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logger threaded through every package that emits
// progress or diagnostic output during a replay run.
type Logger = zerolog.Logger

// Fields a caller commonly attaches: block number, transaction hash, log
// index within the transaction, the affected token-id, and the operation
// name. Not every call site sets every field.
const (
	FieldBlock    = "block"
	FieldTxHash   = "tx_hash"
	FieldLogIndex = "log_index"
	FieldTokenID  = "token_id"
	FieldOp       = "op"
)

// New builds a console-formatted logger writing to w at the given level,
// mirroring the compact, no-target/no-thread-id/no-line-number formatting
// the grounding original's tracing_subscriber setup uses.
func New(w io.Writer, level zerolog.Level) Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Default builds a logger at info level writing to stderr, the level/sink
// pairing cmd/replay uses unless configuration overrides it.
func Default() Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// Nop returns a logger that discards everything, useful in tests that don't
// want to assert on log output.
func Nop() Logger {
	return zerolog.Nop()
}
