package pump

import (
	"sync"

	"golang.org/x/time/rate"

	"wolfnet/internal/logging"
)

// ErrorKind classifies a dropped packet for counting and rate-limited
// logging, matching the error kinds enumerated in the design.
type ErrorKind string

const (
	ErrKindUnknownPeer     ErrorKind = "unknown_peer"
	ErrKindEndpointUnknown ErrorKind = "endpoint_unknown"
	ErrKindDecryptFailed   ErrorKind = "decrypt_failed"
	ErrKindStaleNonce      ErrorKind = "stale_nonce"
	ErrKindFrameMalformed  ErrorKind = "frame_malformed"
	ErrKindSourceSpoofed   ErrorKind = "source_spoofed"
	ErrKindSessionOverflow ErrorKind = "session_overflow"
	ErrKindSendFailed      ErrorKind = "send_failed"
)

// errorLogger rate-limits per-kind logging of packet errors: one
// token-bucket limiter per kind, so a storm of one error type never drowns
// out or starves logging of the others.
type errorLogger struct {
	mu       sync.Mutex
	limiters map[ErrorKind]*rate.Limiter
	sink     logging.Logger
}

func newErrorLogger(sink logging.Logger) *errorLogger {
	return &errorLogger{limiters: make(map[ErrorKind]*rate.Limiter), sink: sink}
}

// logRatePerSecond and logBurst limit each kind to at most one log line per second, with a small
// burst so a brief spike doesn't all get suppressed.
const logRatePerSecond = 1
const logBurst = 5

func (e *errorLogger) limiterFor(kind ErrorKind) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[kind]
	if !ok {
		l = rate.NewLimiter(rate.Limit(logRatePerSecond), logBurst)
		e.limiters[kind] = l
	}
	return l
}

// log logs a rate-limited message for kind. It never blocks: if the
// limiter is dry, the message is dropped, not queued.
func (e *errorLogger) log(kind ErrorKind, format string, args ...any) {
	if e.limiterFor(kind).Allow() {
		e.sink.Printf(format, args...)
	}
}
