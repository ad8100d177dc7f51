package safety

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// LockStatus is the oracle's verdict on LP token custody.
type LockStatus string

const (
	LockSafe     LockStatus = "safe"     // liquidity locked or burned
	LockRisky    LockStatus = "risky"    // lock expires soon
	LockUnlocked LockStatus = "unlocked" // LP tokens free to pull
)

// Pacer is the rate-limiter hook, satisfied by *ratelimit.Limiter.
type Pacer interface {
	Acquire(ctx context.Context) error
	Throttle(retryAfter time.Duration)
	Success()
}

// LockOracle queries an external LP-lock report service.
type LockOracle struct {
	baseURL string
	client  *http.Client
	pacer   Pacer
}

// OracleOption configures LockOracle.
type OracleOption func(*LockOracle)

// WithOraclePacer routes oracle calls through the given rate limiter.
func WithOraclePacer(p Pacer) OracleOption {
	return func(o *LockOracle) { o.pacer = p }
}

// WithOracleHTTPClient sets a custom http.Client.
func WithOracleHTTPClient(client *http.Client) OracleOption {
	return func(o *LockOracle) { o.client = client }
}

// NewLockOracle creates a client against the report API base URL.
func NewLockOracle(baseURL string, opts ...OracleOption) *LockOracle {
	o := &LockOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type lockReport struct {
	Score float64 `json:"score"`
	Risks []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"risks"`
}

// Status fetches the report summary and classifies the LP lock state from
// its risk entries.
func (o *LockOracle) Status(ctx context.Context, mint string) (LockStatus, error) {
	if o.pacer != nil {
		if err := o.pacer.Acquire(ctx); err != nil {
			return "", err
		}
	}

	url := fmt.Sprintf("%s/tokens/%s/report/summary", o.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if o.pacer != nil {
			o.pacer.Throttle(0)
		}
		return "", fmt.Errorf("oracle rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle status %d: %s", resp.StatusCode, string(body))
	}
	if o.pacer != nil {
		o.pacer.Success()
	}

	var report lockReport
	if err := json.Unmarshal(body, &report); err != nil {
		return "", fmt.Errorf("parse report: %w", err)
	}

	for _, risk := range report.Risks {
		if strings.Contains(risk.Name, "LP Unlocked") ||
			strings.Contains(risk.Description, "LP tokens are unlocked") {
			return LockUnlocked, nil
		}
		if strings.Contains(risk.Name, "LP Unlock in") ||
			strings.Contains(risk.Description, "will unlock soon") {
			return LockRisky, nil
		}
	}
	return LockSafe, nil
}
