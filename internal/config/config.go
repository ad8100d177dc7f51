// Package config loads sniper settings from a JSON file with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

// Duration wraps time.Duration so settings files can say "30s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RateLimitConfig bounds one upstream's request rate.
type RateLimitConfig struct {
	MinInterval  Duration `json:"min_interval"`
	JitterMin    Duration `json:"jitter_min"`
	JitterMax    Duration `json:"jitter_max"`
	MaxPerMinute int      `json:"max_per_minute"`
}

// Upstream names used as RateLimits keys.
const (
	UpstreamRPC        = "rpc"
	UpstreamSwapRouter = "swap-router"
	UpstreamLockOracle = "lock-oracle"
)

// Config holds every runtime setting of the sniper.
type Config struct {
	// Endpoints. RPC and WS default to Helius when HELIUS_API_KEY is set.
	RPCEndpoint   string `json:"rpc_endpoint"`
	WSEndpoint    string `json:"ws_endpoint"`
	SwapRouterURL string `json:"swap_router_url"`
	LockOracleURL string `json:"lock_oracle_url"`

	// Credentials, environment only. Never read from the settings file.
	HeliusAPIKey      string `json:"-"`
	WalletSecretKey   string `json:"-"`
	PostgresDSN       string `json:"-"`
	ClickhouseDSN     string `json:"-"`
	DiscordWebhookURL string `json:"-"`

	// Discovery gates.
	LiquidityFloorUSD float64  `json:"liquidity_floor_usd"`
	MaxTokenAge       Duration `json:"max_token_age"`
	Blacklist         []string `json:"blacklist"`

	// Monitored DEX programs and the log markers that flag pool creation.
	Programs           []string `json:"programs"`
	InstructionMarkers []string `json:"instruction_markers"`

	// Trading.
	Simulation            bool    `json:"simulation"`
	TradeAmountUSD        float64 `json:"trade_amount_usd"`
	MaxTrades             int     `json:"max_trades"`
	SlippagePct           float64 `json:"slippage_pct"`
	SellRetrySlippageStep float64 `json:"sell_retry_slippage_step"`
	SellMaxRetries        int     `json:"sell_max_retries"`

	// Exit rules.
	UseTakeProfit          bool     `json:"use_take_profit"`
	UseStopLoss            bool     `json:"use_stop_loss"`
	UseTrailingStop        bool     `json:"use_trailing_stop"`
	UseTimeout             bool     `json:"use_timeout"`
	TakeProfit             float64  `json:"take_profit"`
	StopLoss               float64  `json:"stop_loss"`
	TrailingStop           float64  `json:"trailing_stop"`
	TSLActivation          float64  `json:"tsl_activation"`
	TimeoutAfter           Duration `json:"timeout_after"`
	TimeoutProfitThreshold float64  `json:"timeout_profit_threshold"`
	TimeoutMaxLoss         float64  `json:"timeout_max_loss"`
	TrackInterval          Duration `json:"track_interval"`
	ReconcileInterval      Duration `json:"reconcile_interval"`
	DustUSD                float64  `json:"dust_usd"`

	// Safety checks.
	MaxFeeRatio      float64  `json:"max_fee_ratio"`
	FeePctLimit      float64  `json:"fee_pct_limit"`
	Phase2Delay      Duration `json:"phase2_delay"`
	MinPostBuyScore  float64  `json:"min_post_buy_score"`
	ClosePoorScore   bool     `json:"close_poor_score"`
	MarketCapCeiling float64  `json:"market_cap_ceiling"`

	// Holder distribution thresholds, all percentages of supply.
	MinHolders         int     `json:"min_holders"`
	TopHolderPct       float64 `json:"top_holder_pct"`
	Top5Pct            float64 `json:"top5_pct"`
	UniformEpsilonPct  float64 `json:"uniform_epsilon_pct"`
	UniformFloorPct    float64 `json:"uniform_floor_pct"`
	SmallTopPct        float64 `json:"small_top_pct"`
	SecondaryHolderPct float64 `json:"secondary_holder_pct"`

	// Per-upstream rate limits keyed by Upstream* name.
	RateLimits map[string]RateLimitConfig `json:"rate_limits"`
}

// Known DEX program IDs.
const (
	RaydiumAMMProgram  = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	RaydiumCLMMProgram = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	PumpfunProgram     = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		SwapRouterURL: "https://quote-api.jup.ag/v6",
		LockOracleURL: "https://api.rugcheck.xyz/v1",

		LiquidityFloorUSD: 1500,
		MaxTokenAge:       Duration(30 * time.Second),

		Programs: []string{RaydiumAMMProgram, RaydiumCLMMProgram, PumpfunProgram},
		InstructionMarkers: []string{
			"initialize2",          // Raydium AMM v4 pool init
			"CreatePool",           // Raydium CLMM
			"InitializeInstruction2",
			"Instruction: Create", // pumpfun bonding curve
		},

		Simulation:            true,
		TradeAmountUSD:        10,
		MaxTrades:             20,
		SlippagePct:           3.0,
		SellRetrySlippageStep: 1.0,
		SellMaxRetries:        3,

		UseTakeProfit:          true,
		UseStopLoss:            true,
		UseTrailingStop:        true,
		UseTimeout:             true,
		TakeProfit:             4.0,
		StopLoss:               0.25,
		TrailingStop:           0.20,
		TSLActivation:          1.5,
		TimeoutAfter:           Duration(60 * time.Second),
		TimeoutProfitThreshold: 1.03,
		TimeoutMaxLoss:         0.50,
		TrackInterval:          Duration(1 * time.Second),
		ReconcileInterval:      Duration(60 * time.Second),
		DustUSD:                1.0,

		MaxFeeRatio:      10000,
		FeePctLimit:      5.0,
		Phase2Delay:      Duration(60 * time.Second),
		MinPostBuyScore:  3,
		ClosePoorScore:   false,
		MarketCapCeiling: 1_000_000,

		MinHolders:         20,
		TopHolderPct:       30,
		Top5Pct:            70,
		UniformEpsilonPct:  0.01,
		UniformFloorPct:    5,
		SmallTopPct:        2,
		SecondaryHolderPct: 6,

		RateLimits: map[string]RateLimitConfig{
			UpstreamRPC: {
				MinInterval:  Duration(100 * time.Millisecond),
				JitterMin:    Duration(10 * time.Millisecond),
				JitterMax:    Duration(50 * time.Millisecond),
				MaxPerMinute: 300,
			},
			UpstreamSwapRouter: {
				MinInterval:  Duration(500 * time.Millisecond),
				JitterMin:    Duration(50 * time.Millisecond),
				JitterMax:    Duration(200 * time.Millisecond),
				MaxPerMinute: 60,
			},
			UpstreamLockOracle: {
				MinInterval:  Duration(2 * time.Second),
				JitterMin:    Duration(100 * time.Millisecond),
				JitterMax:    Duration(500 * time.Millisecond),
				MaxPerMinute: 20,
			},
		},
	}
}

// Load reads the settings file (optional) on top of defaults, then applies
// environment credentials. A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv pulls credentials from the environment, .env file included.
func (c *Config) loadEnv() {
	_ = godotenv.Load()

	c.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	c.WalletSecretKey = os.Getenv("WALLET_SECRET_KEY")
	c.PostgresDSN = os.Getenv("POSTGRES_DSN")
	c.ClickhouseDSN = os.Getenv("CLICKHOUSE_DSN")
	c.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")

	if v := os.Getenv("SOLANA_RPC_ENDPOINT"); v != "" {
		c.RPCEndpoint = v
	}
	if v := os.Getenv("SOLANA_WS_ENDPOINT"); v != "" {
		c.WSEndpoint = v
	}

	if c.RPCEndpoint == "" && c.HeliusAPIKey != "" {
		c.RPCEndpoint = "https://mainnet.helius-rpc.com/?api-key=" + c.HeliusAPIKey
	}
	if c.WSEndpoint == "" && c.HeliusAPIKey != "" {
		c.WSEndpoint = "wss://mainnet.helius-rpc.com/?api-key=" + c.HeliusAPIKey
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required (settings or SOLANA_RPC_ENDPOINT / HELIUS_API_KEY)")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("ws endpoint is required (settings or SOLANA_WS_ENDPOINT / HELIUS_API_KEY)")
	}
	if !c.Simulation && c.WalletSecretKey == "" {
		return fmt.Errorf("WALLET_SECRET_KEY is required when simulation is off")
	}
	if c.TradeAmountUSD <= 0 {
		return fmt.Errorf("trade_amount_usd must be positive, got %v", c.TradeAmountUSD)
	}
	if c.MaxTrades <= 0 {
		return fmt.Errorf("max_trades must be positive, got %d", c.MaxTrades)
	}
	if c.SlippagePct < 0 {
		return fmt.Errorf("slippage_pct must be non-negative, got %v", c.SlippagePct)
	}
	if c.TakeProfit <= 1 {
		return fmt.Errorf("take_profit must exceed 1.0, got %v", c.TakeProfit)
	}
	if c.StopLoss <= 0 || c.StopLoss >= 1 {
		return fmt.Errorf("stop_loss must be in (0,1), got %v", c.StopLoss)
	}
	if c.TrailingStop <= 0 || c.TrailingStop >= 1 {
		return fmt.Errorf("trailing_stop must be in (0,1), got %v", c.TrailingStop)
	}
	if c.TSLActivation <= 1 {
		return fmt.Errorf("tsl_activation must exceed 1.0, got %v", c.TSLActivation)
	}
	if c.TimeoutMaxLoss <= 0 || c.TimeoutMaxLoss >= 1 {
		return fmt.Errorf("timeout_max_loss must be in (0,1), got %v", c.TimeoutMaxLoss)
	}
	if c.LiquidityFloorUSD < 0 {
		return fmt.Errorf("liquidity_floor_usd must be non-negative, got %v", c.LiquidityFloorUSD)
	}
	if c.MaxTokenAge.Std() <= 0 {
		return fmt.Errorf("max_token_age must be positive, got %v", c.MaxTokenAge.Std())
	}
	if c.TrackInterval.Std() <= 0 {
		return fmt.Errorf("track_interval must be positive, got %v", c.TrackInterval.Std())
	}
	if len(c.Programs) == 0 {
		return fmt.Errorf("at least one DEX program is required")
	}
	for name, rl := range c.RateLimits {
		if rl.JitterMax.Std() < rl.JitterMin.Std() {
			return fmt.Errorf("rate limit %q: jitter_max below jitter_min", name)
		}
		if rl.MaxPerMinute < 0 {
			return fmt.Errorf("rate limit %q: max_per_minute must be non-negative", name)
		}
	}
	return nil
}
