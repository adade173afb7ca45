package gate

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Gate authenticates every inbound interaction request before it reaches the
// router. Requests that fail any check are answered with a uniform 401; the
// distinguishing reason is only logged.
type Gate struct {
	l         *slog.Logger
	key       ed25519.PublicKey
	tolerance time.Duration
	now       func() time.Time
}

func New(l *slog.Logger, key ed25519.PublicKey, tolerance time.Duration) *Gate {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	return &Gate{
		l:         l,
		key:       key,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Middleware buffers the request body, runs the ordered checks, and forwards
// the request downstream with the exact bytes that were verified.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			g.l.Error("error reading request body", "error", err, "remote", r.RemoteAddr)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := g.check(r.Header.Get(HeaderSignature), r.Header.Get(HeaderTimestamp), body); err != nil {
			g.l.Warn("rejected interaction request", "error", err, "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))

		next.ServeHTTP(w, r)
	})
}

// check short-circuits on the first failing step.
func (g *Gate) check(sigHex, timestamp string, body []byte) error {
	sig, err := ParseSignature(sigHex)
	if err != nil {
		return err
	}

	if err := CheckTimestamp(timestamp, g.now(), g.tolerance); err != nil {
		return err
	}

	return VerifySignature(g.key, timestamp, body, sig)
}
