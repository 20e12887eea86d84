package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far a webhook timestamp may drift from now before
// the delivery is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("stripe: missing signature header")
	ErrInvalidSignature = errors.New("stripe: signature verification failed")
	ErrStaleTimestamp   = errors.New("stripe: signature timestamp outside tolerance")
)

// VerifySignature checks a Stripe-Signature header against the raw payload.
// The header carries a unix timestamp and one or more v1 signatures; a v1
// signature is HMAC-SHA256 of "<timestamp>.<payload>" with the endpoint
// secret. Any matching v1 entry passes.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		drift := now.Sub(time.Unix(timestamp, 0))
		if drift > tolerance || drift < -tolerance {
			return ErrStaleTimestamp
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// parseSignatureHeader splits "t=1700000000,v1=abcd,v1=ef01" into the
// timestamp and the list of v1 signatures.
func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp  int64 = -1
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("stripe: malformed signature timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
