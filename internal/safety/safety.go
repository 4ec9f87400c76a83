// Package safety classifies SPL Token and Token-2022 mints against a
// configurable Policy, so the enrichment stage can decide whether a pool's
// base or quote token carries authorities or extensions that make it
// unsafe to treat as a normal trading asset.
package safety

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pool-sentinel/internal/rpcx"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// DefaultCacheSize mirrors the ~20,000-entry memoization budget: mints
// rarely change shape once minted, so a completed analysis is cached
// indefinitely until evicted by LRU pressure.
const DefaultCacheSize = 20_000

var (
	tokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// AccountFetcher is the capability Analyzer needs to read raw mint
// account bytes. *rpcx.Client satisfies it directly.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, account string) (*rpcx.AccountValue, error)
}

// Analyzer produces TokenSafetyReport values for mints, memoizing results
// per (mint) in an LRU cache since the decoded shape of a mint never
// changes once observed.
type Analyzer struct {
	fetcher AccountFetcher
	cache   *lru.Cache
	logger  *logrus.Logger
}

// New constructs an Analyzer. cacheSize <= 0 falls back to
// DefaultCacheSize.
func New(fetcher AccountFetcher, cacheSize int, logger *logrus.Logger) (*Analyzer, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = logrus.New()
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create safety cache: %w", err)
	}

	return &Analyzer{fetcher: fetcher, cache: cache, logger: logger}, nil
}

// IsToken2022 implements decode.TokenIntrospector, letting the binary
// account decoders ask whether a mint belongs to the Token-2022 program
// without duplicating the RPC fetch.
func (a *Analyzer) IsToken2022(ctx context.Context, mint string) (bool, error) {
	report, err := a.Analyze(ctx, mint, alert.DefaultPolicy(), false)
	if err != nil {
		return false, err
	}
	return report.Program == alert.Token2022, nil
}

// Analyze fetches and classifies mint, applying policy. Results are
// memoized by mint alone (not by policy): the policy predicates are
// re-evaluated against the cached decoded fields on every call, so
// changing policy never requires a cache flush. routeSupportsMemo is
// passed straight through to the memo-required predicate (spec.md §6).
func (a *Analyzer) Analyze(ctx context.Context, mint string, policy alert.Policy, routeSupportsMemo bool) (*alert.TokenSafetyReport, error) {
	if cached, ok := a.cache.Get(mint); ok {
		report := cached.(alert.TokenSafetyReport)
		evaluatePolicy(&report, policy, routeSupportsMemo)
		return &report, nil
	}

	report, err := a.fetchAndDecode(ctx, mint)
	if err != nil {
		return nil, err
	}

	a.cache.Add(mint, *report)
	evaluatePolicy(report, policy, routeSupportsMemo)
	return report, nil
}

func (a *Analyzer) fetchAndDecode(ctx context.Context, mint string) (*alert.TokenSafetyReport, error) {
	acct, err := a.fetcher.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("mint %s: account not found", mint)
	}

	raw, err := acct.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}

	report := &alert.TokenSafetyReport{Mint: mint}

	switch acct.Owner {
	case tokenProgramID:
		report.Program = alert.TokenV1
	case token2022ProgramID:
		report.Program = alert.Token2022
	default:
		report.Program = alert.TokenOther
		report.Owner = acct.Owner
		report.MintAuthorityNone = true
		report.FreezeAuthorityNone = true
		return report, nil
	}

	legacy, err := decodeLegacyMint(raw)
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	report.MintAuthorityNone = legacy.mintAuthorityNone
	report.FreezeAuthorityNone = legacy.freezeAuthorityNone
	report.Supply = legacy.supply
	report.Decimals = legacy.decimals

	if report.Program == alert.Token2022 {
		ext := decodeToken2022Extensions(raw)
		report.NonTransferable = ext.nonTransferable
		report.DefaultFrozen = ext.defaultFrozen
		report.PermanentDelegate = ext.permanentDelegate
		report.TransferHook = ext.transferHook
		report.MemoRequired = ext.memoRequired
		report.Confidential = ext.confidential
		report.MintCloseAuthority = ext.mintCloseAuthority
		report.TransferFeeBps = ext.transferFeeBps
		report.TransferFeeMaxAbs = ext.transferFeeMaxAbs
		report.UnknownExtensions = ext.unknownExtensions
	}

	return report, nil
}
