package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// APIKeyHeader carries the exchange API key on signed requests.
const APIKeyHeader = "X-MBX-APIKEY"

// HMACAuth signs exchange REST queries with HMAC-SHA256.
type HMACAuth struct {
	Key        string
	Secret     string
	RecvWindow time.Duration
}

// SignedQuery adds timestamp (and recvWindow) to params and returns the
// encoded query with the hex signature appended last.
func (h *HMACAuth) SignedQuery(params url.Values, now time.Time) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))
	if h.RecvWindow > 0 {
		q.Set("recvWindow", strconv.FormatInt(h.RecvWindow.Milliseconds(), 10))
	}
	encoded := q.Encode()
	return encoded + "&signature=" + Sign(h.Secret, encoded)
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted form for logs.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
