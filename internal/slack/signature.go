package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// TimestampHeader and SignatureHeader are set by Slack on every
	// outbound request. Absence of either is an authentication failure.
	TimestampHeader = "X-Slack-Request-Timestamp"
	SignatureHeader = "X-Slack-Signature"

	// SignatureVersion is Slack's signing scheme version prefix.
	// See https://api.slack.com/docs/verifying-requests-from-slack.
	SignatureVersion = "v0"

	// MaxTimestampSkew is the maximum shift we allow between a request's
	// timestamp header and our clock, to defend against replay attacks.
	MaxTimestampSkew = 5 * time.Minute
)

// Sign computes the request signature Slack would attach to a request with
// the given timestamp header and raw body: the lowercase hex HMAC-SHA256 of
// "v0:<timestamp>:<body>" under the signing secret, prefixed with "v0=".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureVersion))
	mac.Write([]byte(":"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is the valid signature of body under
// secret and timestamp. The comparison is constant-time. An unset secret,
// missing timestamp, or missing signature all fail verification.
func Verify(secret, timestamp string, body []byte, provided string) bool {
	if secret == "" || timestamp == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(provided))
}

// Fresh reports whether the timestamp header value parses as Unix seconds
// within MaxTimestampSkew of the current time. Requests outside the window
// are treated as replays and rejected.
func Fresh(timestamp string) bool {
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	return time.Since(time.Unix(secs, 0)).Abs() <= MaxTimestampSkew
}
