// pkg/smarty/client.go
package smarty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/config"
	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

// lastLineZipRe pulls a 5-digit ZIP out of a "City ST ZIP" last line.
var lastLineZipRe = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)

// lookup is one request item in a batch payload.
type lookup struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode,omitempty"`
	Match   string `json:"match"`
}

// apiMatch is the subset of a street-address API response the pipeline reads.
type apiMatch struct {
	InputIndex    *int   `json:"input_index"`
	DeliveryLine1 string `json:"delivery_line_1"`
	LastLine      string `json:"last_line"`
	Components    struct {
		Zipcode           string `json:"zipcode"`
		Zip9              string `json:"zip9"`
		CityName          string `json:"city_name"`
		StateAbbreviation string `json:"state_abbreviation"`
	} `json:"components"`
	Metadata struct {
		SmartyKey string `json:"smarty_key"`
	} `json:"metadata"`
}

// Result is the per-candidate outcome of a batch call.
type Result struct {
	Success          bool
	CorrectedAddress string
	CorrectedZip     string
	CorrectedCity    string
	CorrectedState   string
	SmartyKey        string
	Err              string
}

// Client talks to the Smarty US street-address API.
type Client struct {
	cfg    *config.SmartyConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client from config. The HTTP client carries the
// configured per-call timeout.
func NewClient(cfg *config.SmartyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// buildPayload serializes a batch and reports its size in bytes.
func buildPayload(batch []model.VerificationCandidate) ([]byte, error) {
	items := make([]lookup, len(batch))
	for i, c := range batch {
		items[i] = lookup{
			Street:  strings.TrimSpace(c.Address),
			City:    strings.TrimSpace(c.City),
			State:   strings.TrimSpace(c.State),
			Zipcode: strings.TrimSpace(c.Zip),
			Match:   "enhanced",
		}
	}
	return json.Marshal(items)
}

// ChunkBatches splits candidates into batches bounded by both the item count
// and the serialized payload byte cap.
func (c *Client) ChunkBatches(candidates []model.VerificationCandidate) [][]model.VerificationCandidate {
	var batches [][]model.VerificationCandidate
	var current []model.VerificationCandidate
	for _, cand := range candidates {
		current = append(current, cand)
		if len(current) == c.cfg.BatchSize {
			payload, err := buildPayload(current)
			if err == nil && len(payload) > c.cfg.MaxPayloadBytes {
				c.logger.Debug("oversized batch, splitting",
					zap.Int("payload_bytes", len(payload)))
				mid := len(current) / 2
				batches = append(batches, current[:mid])
				current = current[mid:]
			} else {
				batches = append(batches, current)
				current = nil
			}
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	c.logger.Debug("chunked verification candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("batches", len(batches)))
	return batches
}

func failAll(n int, reason string) []Result {
	results := make([]Result, n)
	for i := range results {
		results[i] = Result{Err: reason}
	}
	return results
}

// ValidateBatch sends one batch and returns exactly one result per candidate.
// Credential and balance failures are fatal for the batch; oversized payloads
// are bisected; rate limits, server errors and transport failures retry with
// exponential backoff up to the configured ceiling.
func (c *Client) ValidateBatch(ctx context.Context, batch []model.VerificationCandidate) []Result {
	if len(batch) == 0 {
		return nil
	}
	if !c.cfg.Enabled() {
		c.logger.Warn("verification credentials not configured")
		return failAll(len(batch), "API credentials not configured")
	}

	payload, err := buildPayload(batch)
	if err != nil {
		return failAll(len(batch), fmt.Sprintf("Unexpected error: %v", err))
	}

	endpoint := c.cfg.BaseURL + "?" + url.Values{
		"auth-id":    {c.cfg.AuthID},
		"auth-token": {c.cfg.AuthToken},
	}.Encode()

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RateLimitDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return failAll(len(batch), "Request timeout")
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return failAll(len(batch), fmt.Sprintf("Unexpected error: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("batch transport error",
				zap.Int("attempt", attempt+1), zap.Error(err))
			if attempt < c.cfg.MaxRetries-1 {
				continue
			}
			if isTimeout(err) {
				return failAll(len(batch), "Request timeout")
			}
			return failAll(len(batch), "Connection error")
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return failAll(len(batch), "Authentication failed - check API credentials")
		case resp.StatusCode == http.StatusPaymentRequired:
			return failAll(len(batch), "Payment required - check Smarty account balance")
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			if len(batch) > 1 {
				c.logger.Debug("payload too large, bisecting batch",
					zap.Int("batch_size", len(batch)))
				mid := len(batch) / 2
				return append(c.ValidateBatch(ctx, batch[:mid]),
					c.ValidateBatch(ctx, batch[mid:])...)
			}
			return failAll(1, "Payload too large for single address")
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Debug("rate limited", zap.Int("attempt", attempt+1))
			if attempt < c.cfg.MaxRetries-1 {
				continue
			}
			return failAll(len(batch), "Rate limited by Smarty API")
		case resp.StatusCode != http.StatusOK:
			c.logger.Debug("verification API error",
				zap.Int("status", resp.StatusCode))
			if attempt < c.cfg.MaxRetries-1 {
				continue
			}
			return failAll(len(batch), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
		}

		if readErr != nil {
			if attempt < c.cfg.MaxRetries-1 {
				continue
			}
			return failAll(len(batch), "Connection error")
		}

		var matches []apiMatch
		if err := json.Unmarshal(body, &matches); err != nil {
			c.logger.Debug("bad JSON from verification API", zap.Error(err))
			if attempt < c.cfg.MaxRetries-1 {
				continue
			}
			return failAll(len(batch), "Invalid JSON response from Smarty API")
		}

		return c.correlate(batch, matches)
	}

	return failAll(len(batch), "All retry attempts failed")
}

// correlate groups matches by their input index and builds one result per
// candidate. Array position alone is never trusted: partial and out-of-order
// responses must not misassign corrections.
func (c *Client) correlate(batch []model.VerificationCandidate, matches []apiMatch) []Result {
	perAddress := make([][]apiMatch, len(batch))
	for _, m := range matches {
		if m.InputIndex == nil || *m.InputIndex < 0 || *m.InputIndex >= len(batch) {
			c.logger.Debug("match with invalid input index, skipping")
			continue
		}
		perAddress[*m.InputIndex] = append(perAddress[*m.InputIndex], m)
	}

	results := make([]Result, len(batch))
	for i, ms := range perAddress {
		if len(ms) == 0 {
			results[i] = Result{Err: "No valid address match found"}
			continue
		}
		// The API sorts by match quality, first wins.
		first := ms[0]

		corrected := ""
		if first.DeliveryLine1 != "" {
			corrected = validate.StripUnitDesignators(first.DeliveryLine1)
		}
		if corrected == "" {
			results[i] = Result{Err: "Invalid response format from Smarty API"}
			continue
		}

		results[i] = Result{
			Success:          true,
			CorrectedAddress: strings.ToUpper(corrected),
			CorrectedZip:     extractZip(first),
			CorrectedCity:    first.Components.CityName,
			CorrectedState:   first.Components.StateAbbreviation,
			SmartyKey:        first.Metadata.SmartyKey,
		}
	}
	return results
}

// extractZip returns a 5-digit ZIP from the response, trying the zipcode
// component, the zip9 component, then the formatted last line.
func extractZip(m apiMatch) string {
	if m.Components.Zipcode != "" {
		return truncateZip(m.Components.Zipcode)
	}
	if m.Components.Zip9 != "" {
		return truncateZip(m.Components.Zip9)
	}
	if m.LastLine != "" {
		if sub := lastLineZipRe.FindStringSubmatch(m.LastLine); sub != nil {
			return sub[1]
		}
	}
	return ""
}

func truncateZip(zip string) string {
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
