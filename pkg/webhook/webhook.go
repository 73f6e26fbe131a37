package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	HeaderSignature = "X-NotaryPro-Signature"
	HeaderTimestamp = "X-NotaryPro-Timestamp"
	UserAgent       = "NotaryPro-Identity-API/1.0"

	signaturePrefix = "sha256="
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Payload is the JSON body posted to a session's callback URL.
type Payload struct {
	SessionID              string      `json:"sessionId"`
	Status                 string      `json:"status"`
	CompletedVerifications []string    `json:"completedVerifications"`
	RequiredVerifications  []string    `json:"requiredVerifications"`
	Timestamp              time.Time   `json:"timestamp"`
	VerificationResult     interface{} `json:"verificationResult,omitempty"`
}

// Delivery describes one attempt.
type Delivery struct {
	StatusCode int
	Signature  string
	Duration   time.Duration
}

// Notifier posts signed payloads. One attempt per call, no retries.
type Notifier struct {
	client *http.Client
	secret []byte
	now    func() time.Time
}

func NewNotifier(secret string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Notify sends p to url. A non-2xx answer is returned as an error together
// with the filled Delivery so callers can record the status code.
func (n *Notifier) Notify(ctx context.Context, url string, p Payload) (Delivery, error) {
	var d Delivery

	body, err := json.Marshal(p)
	if err != nil {
		return d, errors.Wrap(err, "marshal webhook payload")
	}

	ts := strconv.FormatInt(n.now().Unix(), 10)
	d.Signature = Sign(n.secret, ts, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return d, errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, d.Signature)

	start := time.Now()
	resp, err := n.client.Do(req)
	d.Duration = time.Since(start)
	if err != nil {
		return d, errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	d.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return d, fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return d, nil
}

// Sign returns the signature header value for body sent at timestamp.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature header against body.
func Verify(secret []byte, timestamp string, body []byte, header string) error {
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return ErrInvalidSignature
	}
	return nil
}
