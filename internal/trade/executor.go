package trade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/idhash"
	"solana-sniper/internal/notify"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
	"solana-sniper/internal/swap"
)

// Failed sell stages, recorded so the retry sweep can tell a dead position
// from a transient router hiccup.
const (
	StageBalance = "balance"
	StageQuote   = "quote"
	StageBuild   = "build"
	StageSubmit  = "submit"
)

// ErrZeroBalance marks a sell whose wallet balance is gone. Never retried.
var ErrZeroBalance = errors.New("zero token balance")

// Router is the swap-router surface the executor consumes.
type Router interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amountRaw uint64, slippagePct float64) (*swap.Quote, error)
	BuildSwap(ctx context.Context, quote *swap.Quote, userPubkey string) (string, error)
	SOLPrice(ctx context.Context) (float64, error)
}

// Wallet is the signing wallet surface the executor consumes.
type Wallet interface {
	Pubkey() string
	Sign(message []byte) []byte
	TokenBalance(ctx context.Context, mint string) (float64, error)
}

// Config holds execution parameters.
type Config struct {
	Simulation            bool
	TradeAmountUSD        float64
	SlippagePct           float64
	SellRetrySlippageStep float64
	SellMaxRetries        int
}

// Executor opens and closes positions through the swap router. In simulation
// mode no transaction is built; trades are recorded at quoted prices.
type Executor struct {
	rpc      solana.RPCClient
	router   Router
	wallet   Wallet
	trades   storage.TradeStore
	notifier notify.Notifier
	cfg      Config

	confirmAttempts int
	confirmInterval time.Duration
	pendingWait     time.Duration

	mu          sync.Mutex
	pendingBuys map[string]struct{}
	failedSells map[string]*domain.FailedSell
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithConfirmPolicy overrides the confirmation poll used after submit.
func WithConfirmPolicy(attempts int, interval time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.confirmAttempts = attempts
		e.confirmInterval = interval
	}
}

// WithPendingBuyWait overrides how long a sell waits for an unconfirmed buy.
func WithPendingBuyWait(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.pendingWait = d
	}
}

// NewExecutor creates an Executor. The wallet may be nil in simulation mode.
func NewExecutor(rpc solana.RPCClient, router Router, wallet Wallet, trades storage.TradeStore, notifier notify.Notifier, cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		rpc:             rpc,
		router:          router,
		wallet:          wallet,
		trades:          trades,
		notifier:        notifier,
		cfg:             cfg,
		confirmAttempts: 10,
		confirmInterval: 2 * time.Second,
		pendingWait:     3 * time.Second,
		pendingBuys:     make(map[string]struct{}),
		failedSells:     make(map[string]*domain.FailedSell),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buy opens a position of cfg.TradeAmountUSD in the given mint. The returned
// record is already persisted.
func (e *Executor) Buy(ctx context.Context, mint string) (*domain.TradeRecord, error) {
	solPrice, err := e.router.SOLPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("sol price: %w", err)
	}
	if solPrice <= 0 {
		return nil, fmt.Errorf("sol price unavailable")
	}

	lamports := uint64(e.cfg.TradeAmountUSD / solPrice * solana.LamportsPerSOL)
	if lamports == 0 {
		return nil, fmt.Errorf("trade size below one lamport")
	}

	quote, err := e.router.GetQuote(ctx, solana.WSOLMint, mint, lamports, e.cfg.SlippagePct)
	if err != nil {
		return nil, fmt.Errorf("buy quote: %w", err)
	}
	if quote.OutAmount == 0 {
		return nil, fmt.Errorf("buy quote returned zero output")
	}

	supply, err := e.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("token decimals: %w", err)
	}
	tokenAmount := float64(quote.OutAmount) / math.Pow10(supply.Decimals)
	entryPrice := e.cfg.TradeAmountUSD / tokenAmount
	openedAt := time.Now().UnixMilli()

	if e.cfg.Simulation {
		tradeID := idhash.ComputeTradeID(mint, "sim", openedAt)
		record := &domain.TradeRecord{
			TradeID:       tradeID,
			Mint:          mint,
			Status:        domain.TradeSimulated,
			EntryPriceUSD: entryPrice,
			TokenAmount:   tokenAmount,
			SizeUSD:       e.cfg.TradeAmountUSD,
			EntrySig:      "sim-" + tradeID[:16],
			OpenedAt:      openedAt,
			Simulated:     true,
		}
		if err := e.trades.Insert(ctx, record); err != nil {
			return nil, fmt.Errorf("persist simulated trade: %w", err)
		}
		e.notify(ctx, fmt.Sprintf("BUY (sim) %s: %.6f tokens for $%.2f @ %.10f", mint, tokenAmount, e.cfg.TradeAmountUSD, entryPrice))
		return record, nil
	}

	if e.wallet == nil {
		return nil, fmt.Errorf("live mode requires a wallet")
	}

	txB64, err := e.router.BuildSwap(ctx, quote, e.wallet.Pubkey())
	if err != nil {
		return nil, fmt.Errorf("build buy swap: %w", err)
	}
	signed, err := swap.SignTransaction(txB64, e.wallet)
	if err != nil {
		return nil, fmt.Errorf("sign buy swap: %w", err)
	}

	sig, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("submit buy: %w", err)
	}

	record := &domain.TradeRecord{
		TradeID:       idhash.ComputeTradeID(mint, sig, openedAt),
		Mint:          mint,
		Status:        domain.TradeFinalized,
		EntryPriceUSD: entryPrice,
		TokenAmount:   tokenAmount,
		SizeUSD:       e.cfg.TradeAmountUSD,
		EntrySig:      sig,
		OpenedAt:      openedAt,
	}
	if err := e.trades.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	// The buy is already on the wire, so confirmation and fill resolution
	// settle in the background instead of holding up the caller. The record
	// keeps the quoted entry until the observed fill lands; any sell arriving
	// in that window waits on the pending flag.
	e.setPendingBuy(mint, true)
	go e.confirmBuy(record)

	e.notify(ctx, fmt.Sprintf("BUY %s: %.6f tokens for $%.2f @ %.10f (%s)", mint, tokenAmount, e.cfg.TradeAmountUSD, entryPrice, sig))
	return record, nil
}

// confirmBuy polls the submitted buy and upgrades the recorded entry from the
// quoted estimate to the observed fill. A confirmation miss leaves the record
// as written; wallet reconciliation settles any resulting drift.
func (e *Executor) confirmBuy(t *domain.TradeRecord) {
	defer e.setPendingBuy(t.Mint, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.confirmAttempts+1)*e.confirmInterval)
	defer cancel()

	if err := e.confirm(ctx, t.EntrySig); err != nil {
		log.Printf("[trade] buy %s not confirmed: %v", t.EntrySig, err)
		e.notify(ctx, fmt.Sprintf("⚠️ buy %s unconfirmed: %v", t.Mint, err))
		return
	}

	filled, ok := e.fillAmount(ctx, t.EntrySig, t.Mint)
	if !ok || filled <= 0 {
		return
	}
	if err := e.trades.SetEntry(ctx, t.TradeID, t.SizeUSD/filled, filled); err != nil {
		log.Printf("[trade] record fill %s: %v", t.TradeID, err)
	}
}

// Sell closes a position at the given price. Live sells that fail before
// confirmation are recorded for the retry sweep; the trade stays open.
func (e *Executor) Sell(ctx context.Context, t *domain.TradeRecord, currentPrice float64, trigger string) error {
	if err := e.waitPendingBuy(ctx, t.Mint); err != nil {
		return err
	}

	pnl := pnlPercent(t.EntryPriceUSD, currentPrice)

	if t.Simulated {
		err := e.trades.Close(ctx, t.TradeID, storage.TradeClose{
			ExitPriceUSD: currentPrice,
			ExitSig:      "sim-exit-" + t.TradeID[:16],
			PnLPercent:   pnl,
			Trigger:      trigger,
			ClosedAt:     time.Now().UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("close simulated trade: %w", err)
		}
		e.clearFailedSell(t.Mint)
		e.notify(ctx, fmt.Sprintf("SELL (sim) %s: %s pnl %.1f%%", t.Mint, trigger, pnl))
		return nil
	}

	return e.sellLive(ctx, t, currentPrice, trigger, e.cfg.SlippagePct)
}

func (e *Executor) sellLive(ctx context.Context, t *domain.TradeRecord, currentPrice float64, trigger string, slippagePct float64) error {
	balance, err := e.wallet.TokenBalance(ctx, t.Mint)
	if err != nil {
		e.recordFailedSell(t.Mint, StageBalance, err.Error(), trigger, false)
		return fmt.Errorf("sell balance: %w", err)
	}
	if balance <= 0 {
		e.recordFailedSell(t.Mint, StageBalance, "zero balance", trigger, true)
		return ErrZeroBalance
	}

	supply, err := e.rpc.GetTokenSupply(ctx, t.Mint)
	if err != nil {
		e.recordFailedSell(t.Mint, StageQuote, err.Error(), trigger, false)
		return fmt.Errorf("sell decimals: %w", err)
	}
	amountRaw := uint64(balance * math.Pow10(supply.Decimals))
	if amountRaw == 0 {
		e.recordFailedSell(t.Mint, StageBalance, "zero raw amount", trigger, true)
		return ErrZeroBalance
	}

	quote, err := e.router.GetQuote(ctx, t.Mint, solana.WSOLMint, amountRaw, slippagePct)
	if err != nil {
		e.recordFailedSell(t.Mint, StageQuote, err.Error(), trigger, false)
		return fmt.Errorf("sell quote: %w", err)
	}

	txB64, err := e.router.BuildSwap(ctx, quote, e.wallet.Pubkey())
	if err != nil {
		e.recordFailedSell(t.Mint, StageBuild, err.Error(), trigger, false)
		return fmt.Errorf("build sell swap: %w", err)
	}
	signed, err := swap.SignTransaction(txB64, e.wallet)
	if err != nil {
		e.recordFailedSell(t.Mint, StageBuild, err.Error(), trigger, false)
		return fmt.Errorf("sign sell swap: %w", err)
	}

	sig, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		e.recordFailedSell(t.Mint, StageSubmit, err.Error(), trigger, false)
		return fmt.Errorf("submit sell: %w", err)
	}

	if err := e.trades.SetStatus(ctx, t.TradeID, domain.TradeSelling); err != nil {
		log.Printf("[trade] mark %s selling: %v", t.TradeID, err)
	}
	e.clearFailedSell(t.Mint)

	// The exit is already on the wire; confirmation only settles bookkeeping,
	// so it runs detached from the caller's deadline.
	go e.confirmSell(t, sig, currentPrice, trigger)
	return nil
}

func (e *Executor) confirmSell(t *domain.TradeRecord, sig string, exitPrice float64, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.confirmAttempts+1)*e.confirmInterval)
	defer cancel()

	if err := e.confirm(ctx, sig); err != nil {
		log.Printf("[trade] sell %s not confirmed: %v", sig, err)
		e.recordFailedSell(t.Mint, StageSubmit, err.Error(), trigger, false)
		return
	}

	pnl := pnlPercent(t.EntryPriceUSD, exitPrice)
	err := e.trades.Close(ctx, t.TradeID, storage.TradeClose{
		ExitPriceUSD: exitPrice,
		ExitSig:      sig,
		PnLPercent:   pnl,
		Trigger:      trigger,
		ClosedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[trade] close %s: %v", t.TradeID, err)
		return
	}
	e.notify(ctx, fmt.Sprintf("SELL %s: %s pnl %.1f%% (%s)", t.Mint, trigger, pnl, sig))
}

// RetryFailedSells re-attempts non-terminal failed sells with widened
// slippage. Prices come from the supplied lookup.
func (e *Executor) RetryFailedSells(ctx context.Context, price func(ctx context.Context, mint string) (float64, error)) {
	for _, f := range e.FailedSells() {
		if f.Terminal {
			continue
		}
		if f.Attempts >= e.cfg.SellMaxRetries {
			e.recordFailedSell(f.Mint, f.Stage, "retries exhausted", f.Trigger, true)
			continue
		}

		trades, err := e.trades.GetByMint(ctx, f.Mint)
		if err != nil {
			log.Printf("[trade] retry lookup %s: %v", f.Mint, err)
			continue
		}
		var open *domain.TradeRecord
		for _, t := range trades {
			if t.Status.Open() {
				open = t
				break
			}
		}
		if open == nil {
			e.clearFailedSell(f.Mint)
			continue
		}

		cur, err := price(ctx, f.Mint)
		if err != nil {
			log.Printf("[trade] retry price %s: %v", f.Mint, err)
			continue
		}

		// Keep the trigger that originally decided to exit: a stopped-out
		// position must not be bookkept as a manual close after a retry.
		trigger := f.Trigger
		if trigger == "" {
			trigger = domain.TriggerManual
		}

		slippage := e.cfg.SlippagePct + float64(f.Attempts)*e.cfg.SellRetrySlippageStep
		log.Printf("[trade] retrying sell %s attempt %d slippage %.1f%%", f.Mint, f.Attempts, slippage)
		if err := e.sellLive(ctx, open, cur, trigger, slippage); err != nil {
			log.Printf("[trade] retry sell %s: %v", f.Mint, err)
		}
	}
}

// FailedSells returns a snapshot of the failed-sell ledger.
func (e *Executor) FailedSells() []domain.FailedSell {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]domain.FailedSell, 0, len(e.failedSells))
	for _, f := range e.failedSells {
		result = append(result, *f)
	}
	return result
}

// confirm polls signature status until confirmed or attempts run out.
// A transaction error on chain fails immediately.
func (e *Executor) confirm(ctx context.Context, sig string) error {
	for attempt := 0; attempt < e.confirmAttempts; attempt++ {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{sig})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", st.Err)
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.confirmInterval):
		}
	}
	return fmt.Errorf("not confirmed after %d attempts", e.confirmAttempts)
}

// fillAmount resolves the wallet's token delta from a confirmed buy.
func (e *Executor) fillAmount(ctx context.Context, sig, mint string) (float64, bool) {
	tx, err := e.rpc.GetTransaction(ctx, sig)
	if err != nil || tx == nil || tx.Meta == nil {
		return 0, false
	}

	owner := e.wallet.Pubkey()
	var pre, post float64
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			pre += b.Amount.Units()
		}
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			post += b.Amount.Units()
		}
	}
	return post - pre, true
}

func (e *Executor) waitPendingBuy(ctx context.Context, mint string) error {
	deadline := time.Now().Add(e.pendingWait)
	for e.isPendingBuy(mint) {
		if time.Now().After(deadline) {
			return fmt.Errorf("buy for %s still unconfirmed", mint)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

func (e *Executor) setPendingBuy(mint string, pending bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pending {
		e.pendingBuys[mint] = struct{}{}
	} else {
		delete(e.pendingBuys, mint)
	}
}

func (e *Executor) isPendingBuy(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pendingBuys[mint]
	return ok
}

func (e *Executor) recordFailedSell(mint, stage, reason, trigger string, terminal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.failedSells[mint]
	if !ok {
		f = &domain.FailedSell{Mint: mint, Trigger: trigger}
		e.failedSells[mint] = f
	}
	f.Stage = stage
	f.Reason = reason
	f.Attempts++
	f.LastTried = time.Now().UnixMilli()
	if terminal {
		f.Terminal = true
	}
}

func (e *Executor) clearFailedSell(mint string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.failedSells, mint)
}

func (e *Executor) notify(ctx context.Context, text string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, text); err != nil {
		log.Printf("[trade] notify: %v", err)
	}
}

func pnlPercent(entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (exit/entry - 1) * 100
}
