package domain

// Code is a canonical wallet outcome code. The set is closed: every failure
// path in the engine maps to exactly one of these, and callers branch on the
// code rather than the message string.
type Code string

const (
	CodeInvalidAmount          Code = "INVALID_AMOUNT"
	CodeUnknownPlayer          Code = "UNKNOWN_PLAYER"
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeIdempotencyReplay      Code = "IDEMPOTENCY_REPLAY"
	CodeIdempotencyMismatch    Code = "IDEMPOTENCY_MISMATCH"
	CodeDeadlockRetryExhausted Code = "DEADLOCK_RETRY_EXHAUSTED"
	CodeConnectionLost         Code = "CONNECTION_LOST"
	CodeDegradedMode           Code = "DEGRADED_MODE"
	CodeDuplicateKey           Code = "DUPLICATE_KEY"
)

// Result is the outcome of a wallet mutation attempt. A successful replay
// carries OK=true, Code=IDEMPOTENCY_REPLAY and Replayed=true; a replayed
// failure keeps its original code with Replayed set.
type Result struct {
	OK       bool   `json:"ok"`
	Code     Code   `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
	// Balance of the debited (or credited, for deposits) account after the
	// mutation. Only meaningful when OK is true and Replayed is false.
	NewBalance *int64 `json:"new_balance,omitempty"`
}

// Succeed builds a success result with the post-mutation balance.
func Succeed(newBalance int64) Result {
	return Result{OK: true, NewBalance: &newBalance}
}

// Fail builds a failure result for the given code.
func Fail(code Code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}

// Replay marks a cached result as replayed. Successful results surface
// IDEMPOTENCY_REPLAY so callers can distinguish a replay from a fresh
// mutation; failures keep their original code.
func (r Result) Replay() Result {
	r.Replayed = true
	if r.OK {
		r.Code = CodeIdempotencyReplay
	}
	return r
}
