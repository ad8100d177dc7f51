// Package swap talks to the swap router for quotes, prices, and swap
// transaction construction.
package swap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"solana-sniper/internal/solana"
)

// Pacer is the rate-limiter hook, satisfied by *ratelimit.Limiter.
type Pacer interface {
	Acquire(ctx context.Context) error
	Throttle(retryAfter time.Duration)
	Success()
}

// Quote is one routed swap quote. Raw carries the untouched router response
// because the swap-build endpoint wants it back verbatim.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	Raw            json.RawMessage
}

// Client is the HTTP swap-router client.
type Client struct {
	quoteURL string
	priceURL string
	client   *http.Client
	pacer    Pacer
}

// Option configures Client.
type Option func(*Client)

// WithPriceURL overrides the price API base.
func WithPriceURL(u string) Option {
	return func(c *Client) { c.priceURL = u }
}

// WithPacer routes every call through the given rate limiter.
func WithPacer(p Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// NewClient creates a swap-router client against the given quote API base.
func NewClient(quoteURL string, opts ...Option) *Client {
	c := &Client{
		quoteURL: quoteURL,
		priceURL: "https://api.jup.ag/price/v2",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse mirrors the router quote shape. Amounts arrive as strings.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	Error          string `json:"error"`
}

// GetQuote asks for a route swapping amountRaw base units of inputMint into
// outputMint. slippagePct is a percentage; the router wants basis points.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amountRaw uint64, slippagePct float64) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amountRaw, 10))
	q.Set("slippageBps", strconv.Itoa(int(slippagePct*100)))

	body, err := c.do(ctx, http.MethodGet, c.quoteURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("router: %s", resp.Error)
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", resp.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", resp.OutAmount, err)
	}
	impact, _ := strconv.ParseFloat(resp.PriceImpactPct, 64)

	return &Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		Raw:            body,
	}, nil
}

// Prices returns USD prices for the given mints. Mints the price API does not
// know are absent from the result.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	ids := mints[0]
	for _, m := range mints[1:] {
		ids += "," + m
	}
	q.Set("ids", ids)

	body, err := c.do(ctx, http.MethodGet, c.priceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data map[string]*struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	prices := make(map[string]float64, len(resp.Data))
	for mint, entry := range resp.Data {
		if entry == nil {
			continue
		}
		p, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil {
			continue
		}
		prices[mint] = p
	}
	return prices, nil
}

// SOLPrice returns the native coin USD price.
func (c *Client) SOLPrice(ctx context.Context) (float64, error) {
	prices, err := c.Prices(ctx, []string{solana.WSOLMint})
	if err != nil {
		return 0, err
	}
	p, ok := prices[solana.WSOLMint]
	if !ok || p <= 0 {
		return 0, fmt.Errorf("no SOL price in router response")
	}
	return p, nil
}

// BuildSwap turns a quote into an unsigned base64 transaction with the user
// as fee payer.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, userPubkey string) (string, error) {
	req := map[string]interface{}{
		"quoteResponse":    quote.Raw,
		"userPublicKey":    userPubkey,
		"wrapAndUnwrapSol": true,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.quoteURL+"/swap", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
		Error           string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse swap response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("router: %s", resp.Error)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("router returned no transaction")
	}
	return resp.SwapTransaction, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	if c.pacer != nil {
		if err := c.pacer.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.pacer != nil {
			c.pacer.Throttle(retryAfterHint(resp))
		}
		return nil, fmt.Errorf("router rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("router status %d: %s", resp.StatusCode, string(body))
	}

	if c.pacer != nil {
		c.pacer.Success()
	}
	return body, nil
}

func retryAfterHint(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
