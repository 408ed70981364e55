// Package security enforces the scheduler's submission hygiene: naming
// rules, payload and timeout bounds, and sanitization of persisted error
// text.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nqba/qih/pkg/core"
)

// Hard limits enforced at submission time. Requests past these bounds are
// rejected before they reach the queue.
const (
	// MaxOperationNameLength bounds operation tags.
	MaxOperationNameLength = 255

	// MaxInputsSize bounds the JSON-serialized request inputs (1MB).
	MaxInputsSize = 1 << 20

	// MaxRetries caps a job's retry budget.
	MaxRetries = 100

	// MaxWorkers caps the scheduler's consumer pool.
	MaxWorkers = 1000

	// MaxErrorMessageLength bounds error text persisted on a job.
	MaxErrorMessageLength = 4096

	// MaxIdempotencyKeyLength bounds submission idempotency keys.
	MaxIdempotencyKeyLength = 255

	// MaxTimeoutSeconds caps a single solver invocation (one hour).
	MaxTimeoutSeconds = 3600
)

// Operation tags start with a letter, then letters, digits, "_", "-", ".".
var validOperationName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateOperationName checks an operation tag against the naming rules.
func ValidateOperationName(name string) error {
	if name == "" {
		return core.ErrInvalidOperationName
	}
	if len(name) > MaxOperationNameLength {
		return core.ErrOperationNameTooLong
	}
	if !validOperationName.MatchString(name) {
		return core.ErrInvalidOperationName
	}
	return nil
}

// ValidateTimeout validates and clamps a request timeout.
func ValidateTimeout(seconds int) (int, error) {
	if seconds <= 0 {
		return 0, core.ErrInvalidTimeout
	}
	if seconds > MaxTimeoutSeconds {
		return MaxTimeoutSeconds, nil
	}
	return seconds, nil
}

// ValidateIdempotencyKey bounds an idempotency key's length. Empty keys are
// allowed; they mean no deduplication.
func ValidateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLength {
		return core.ErrIdempotencyKeyTooLong
	}
	return nil
}

// SanitizeErrorMessage makes a solver error safe to persist and return to
// callers: control characters other than whitespace are stripped, and the
// result is truncated to MaxErrorMessageLength runes.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(msg))
	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}

	result := b.String()
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}
	return result
}

// ClampRetries pulls a retry budget into [0, MaxRetries].
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampWorkers pulls a consumer pool size into [1, MaxWorkers].
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
