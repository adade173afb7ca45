package gate

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(priv, msg))
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name   string
		sigHex string
		want   error
	}{
		{"valid 64 bytes", strings.Repeat("ab", 64), nil},
		{"missing", "", ErrMissingSignature},
		{"not hex", strings.Repeat("zz", 64), ErrMalformedSignature},
		{"63 bytes", strings.Repeat("ab", 63), ErrMalformedSignature},
		{"65 bytes", strings.Repeat("ab", 65), ErrMalformedSignature},
		{"odd length hex", strings.Repeat("ab", 64) + "a", ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseSignature(tt.sigHex)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Len(t, sig, ed25519.SignatureSize)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	pub, priv := testKeys(t)
	body := []byte(`{"type":1}`)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sigHex := sign(priv, timestamp, body)

	sig, err := ParseSignature(sigHex)
	require.NoError(t, err)

	require.NoError(t, VerifySignature(pub, timestamp, body, sig))

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[0] ^= 0x01
		err := VerifySignature(pub, timestamp, tampered, sig)
		assert.True(t, errors.Is(err, ErrSignatureMismatch))
	})

	t.Run("tampered signature", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[0] ^= 0x01
		err := VerifySignature(pub, timestamp, body, bad)
		assert.True(t, errors.Is(err, ErrSignatureMismatch))
	})

	t.Run("tampered timestamp", func(t *testing.T) {
		err := VerifySignature(pub, timestamp+"1", body, sig)
		assert.True(t, errors.Is(err, ErrSignatureMismatch))
	})

	t.Run("wrong key", func(t *testing.T) {
		other, _ := testKeys(t)
		err := VerifySignature(other, timestamp, body, sig)
		assert.True(t, errors.Is(err, ErrSignatureMismatch))
	})
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tolerance := 300 * time.Second

	tests := []struct {
		name      string
		timestamp string
		want      error
	}{
		{"current", "1700000000", nil},
		{"at past boundary", "1699999700", nil},
		{"one past boundary", "1699999699", ErrClockSkewExceeded},
		{"at future boundary", "1700000300", nil},
		{"one beyond future boundary", "1700000301", ErrClockSkewExceeded},
		{"missing", "", ErrMissingTimestamp},
		{"not numeric", "yesterday", ErrMalformedTimestamp},
		{"float", "1700000000.5", ErrMalformedTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTimestamp(tt.timestamp, now, tolerance)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestMiddleware(t *testing.T) {
	pub, priv := testKeys(t)
	g := New(slog.New(slog.NewTextHandler(io.Discard, nil)), pub, 300*time.Second)

	body := []byte(`{"type":1,"id":"123"}`)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	var seen []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		seen, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid request passes body through unchanged", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
		req.Header.Set(HeaderSignature, sign(priv, timestamp, body))
		req.Header.Set(HeaderTimestamp, timestamp)

		rec := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, seen)
	})

	t.Run("tampered signature rejected before handler", func(t *testing.T) {
		seen = nil
		sigHex := sign(priv, timestamp, body)
		tampered := "00" + sigHex[2:]

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
		req.Header.Set(HeaderSignature, tampered)
		req.Header.Set(HeaderTimestamp, timestamp)

		rec := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))

		rec := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("rejection body does not disclose the reason", func(t *testing.T) {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body))),
			func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
				r.Header.Set(HeaderSignature, strings.Repeat("ab", 64))
				r.Header.Set(HeaderTimestamp, "0")
				return r
			}(),
		} {
			rec := httptest.NewRecorder()
			g.Middleware(next).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized\n", rec.Body.String())
		}
	})

	t.Run("body read failure is a 500", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", errReader{})
		req.Header.Set(HeaderSignature, sign(priv, timestamp, body))
		req.Header.Set(HeaderTimestamp, timestamp)

		rec := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
		req.Header.Set(HeaderSignature, sign(priv, stale, body))
		req.Header.Set(HeaderTimestamp, stale)

		rec := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("boom")
}
