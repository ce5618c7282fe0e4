package concord

import "strings"

// ErrorKind classifies an error for the retry policy.
type ErrorKind string

const (
	// KindTransient marks infrastructure errors worth retrying:
	// timeouts, connection resets, rate limits.
	KindTransient ErrorKind = "transient"
	// KindFatal marks errors that bypass the retry budget: malformed
	// reasoning output, validation failures, missing required input.
	KindFatal ErrorKind = "fatal"
	// KindReasoningOutput marks malformed or unparseable output from the
	// reasoning service. Fatal for the call that produced it.
	KindReasoningOutput ErrorKind = "reasoning_output"
	// KindConvergence marks round-limit exhaustion. Always fatal.
	KindConvergence ErrorKind = "convergence"
	// KindTimeout marks workflow-level deadline expiry.
	KindTimeout ErrorKind = "timeout"
)

// transientPatterns are matched case-insensitively against error messages.
// Keyword matching is the classification contract, inherited from the
// recoverable-error heuristic this policy replaces.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection error",
	"rate limit",
	"temporarily unavailable",
	"service unavailable",
	"network error",
	"retry",
}

// Classify returns the ErrorKind for an error message. Convergence and
// reasoning-output errors carry their own kind at the recording site;
// Classify only distinguishes transient infrastructure errors from
// everything else.
func Classify(message string) ErrorKind {
	lower := strings.ToLower(message)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return KindTransient
		}
	}
	return KindFatal
}

// Retryable reports whether an error of the given kind may consume the
// retry budget. Convergence failures and fatal errors never retry.
func Retryable(kind ErrorKind) bool {
	return kind == KindTransient
}
