package courier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// SignatureWindow bounds how old (or future-dated) a webhook
// timestamp may be
const SignatureWindow = 3600 * time.Second

// Sign computes the DingTalk-style webhook signature for a timestamp
// in milliseconds: base64(HMAC-SHA256(secret, "<ts>\n<secret>")).
func Sign(secret string, timestampMs int64) string {
	payload := strconv.FormatInt(timestampMs, 10) + "\n" + secret
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time and
// enforces timestamp freshness against now.
func VerifySignature(secret, sign string, timestampMs int64, now time.Time) bool {
	skew := now.UnixMilli() - timestampMs
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Millisecond >= SignatureWindow {
		return false
	}
	expected := Sign(secret, timestampMs)
	return hmac.Equal([]byte(expected), []byte(sign))
}
