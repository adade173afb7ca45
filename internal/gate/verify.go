package gate

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"

	"github.com/graxinc/errutil"
)

var (
	ErrMissingSignature   = errors.New("gate: missing signature header")
	ErrMalformedSignature = errors.New("gate: malformed signature")
	ErrSignatureMismatch  = errors.New("gate: signature mismatch")
	ErrMissingTimestamp   = errors.New("gate: missing timestamp header")
	ErrMalformedTimestamp = errors.New("gate: malformed timestamp")
	ErrClockSkewExceeded  = errors.New("gate: timestamp outside allowed skew")
)

// ParseSignature decodes the hex signature header into exactly 64 raw bytes.
// Anything else is rejected before a verify is ever attempted.
func ParseSignature(sigHex string) ([]byte, error) {
	if sigHex == "" {
		return nil, errutil.Wrap(ErrMissingSignature)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, errutil.Wrap(ErrMalformedSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, errutil.Wrap(ErrMalformedSignature)
	}

	return sig, nil
}

// VerifySignature checks sig over the concatenation of the timestamp header
// bytes, exactly as received, and the raw body bytes.
func VerifySignature(key ed25519.PublicKey, timestamp string, body, sig []byte) error {
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	if !ed25519.Verify(key, msg, sig) {
		return errutil.Wrap(ErrSignatureMismatch)
	}

	return nil
}
