package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sessionwatch/sessionwatch/internal/models"
)

// Header names used by the provider's webhook delivery service.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"

	// DefaultTolerance is the maximum allowed clock skew between the
	// delivery timestamp and local time.
	DefaultTolerance = 5 * time.Minute
)

// Sentinel errors for webhook verification failures.
var (
	ErrMissingHeaders   = errors.New("missing webhook headers")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrInvalidTimestamp = errors.New("webhook timestamp outside tolerance")
)

// Verifier authenticates inbound webhook deliveries against a shared
// signing secret. The signed content is "{id}.{timestamp}.{body}" and the
// signature header carries one or more space-separated "v1,<base64 hmac>"
// entries; verification passes when any entry matches.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier from the provider's signing secret. The
// secret may carry the provider's "whsec_" prefix, in which case the
// remainder is base64 decoded before use.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}

	key := []byte(secret)
	if rest, ok := strings.CutPrefix(secret, secretPrefix); ok {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("failed to decode signing secret: %w", err)
		}
		key = decoded
	}

	return &Verifier{
		secret:    key,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}, nil
}

// WithTolerance overrides the timestamp tolerance. Zero disables the
// timestamp check entirely.
func (v *Verifier) WithTolerance(d time.Duration) *Verifier {
	v.tolerance = d
	return v
}

// Verify authenticates a raw delivery and returns the decoded event.
// Missing headers are rejected before any signature computation.
func (v *Verifier) Verify(body []byte, headers http.Header) (*models.WebhookEvent, error) {
	id := headers.Get(HeaderID)
	timestamp := headers.Get(HeaderTimestamp)
	signature := headers.Get(HeaderSignature)

	if id == "" || timestamp == "" || signature == "" {
		return nil, ErrMissingHeaders
	}

	if err := v.checkTimestamp(timestamp); err != nil {
		return nil, err
	}

	expected := v.sign(id, timestamp, body)
	if !matchSignature(expected, signature) {
		return nil, ErrInvalidSignature
	}

	evt, err := models.ParseWebhookEvent(body)
	if err != nil {
		return nil, fmt.Errorf("verified delivery carried an invalid payload: %w", err)
	}

	return evt, nil
}

// sign computes the base64 HMAC-SHA256 signature over "{id}.{timestamp}.{body}".
func (v *Verifier) sign(id, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(h, "%s.%s.", id, timestamp)
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (v *Verifier) checkTimestamp(timestamp string) error {
	if v.tolerance == 0 {
		return nil
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	diff := v.now().Sub(time.Unix(ts, 0))
	if diff > v.tolerance || diff < -v.tolerance {
		return ErrInvalidTimestamp
	}

	return nil
}

// matchSignature checks the space-separated signature list for a versioned
// entry matching the expected value, using constant-time comparison.
func matchSignature(expected, header string) bool {
	for _, entry := range strings.Split(header, " ") {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}
