package rpcx

import (
	"context"
	"encoding/base64"
	"fmt"
)

// AccountValue is one account as returned by Solana's base64-encoded
// account info responses.
type AccountValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Data       []string `json:"data"` // [base64, "base64"]
}

// Decode returns the raw account bytes, or nil if the account has no data
// (e.g. it does not exist).
func (v *AccountValue) Decode() ([]byte, error) {
	if v == nil || len(v.Data) == 0 {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return raw, nil
}

type withContextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// ProgramAccount pairs an account pubkey with its data, as returned by
// getProgramAccounts.
type ProgramAccount struct {
	Pubkey  string       `json:"pubkey"`
	Account AccountValue `json:"account"`
}

// GetProgramAccounts fetches every account owned by program, using
// dataSlice-free base64 encoding so arbitrary-layout accounts decode
// correctly regardless of size. Uses "confirmed" commitment; the
// watcher's snapshot uses GetProgramAccountsProcessed instead.
func (c *Client) GetProgramAccounts(ctx context.Context, program string) ([]ProgramAccount, error) {
	return c.getProgramAccountsAt(ctx, program, "confirmed")
}

// GetProgramAccountsProcessed is the watcher's snapshot-loop variant: the
// pool inventory snapshot and its subsequent live subscription must agree
// on "processed" commitment so an account mutated between the two is never
// silently missed (spec.md §4.D).
func (c *Client) GetProgramAccountsProcessed(ctx context.Context, program string) ([]ProgramAccount, error) {
	return c.getProgramAccountsAt(ctx, program, "processed")
}

func (c *Client) getProgramAccountsAt(ctx context.Context, program, commitment string) ([]ProgramAccount, error) {
	params := []interface{}{
		program,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": commitment,
		},
	}

	var result []ProgramAccount
	if err := c.Call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, fmt.Errorf("getProgramAccounts(%s): %w", program, err)
	}
	return result, nil
}

// GetAccountInfo fetches a single account's data. The returned pointer is
// nil (with a nil error) if the account does not exist. Uses "confirmed"
// commitment, appropriate for the token-safety read path that calls it.
func (c *Client) GetAccountInfo(ctx context.Context, account string) (*AccountValue, error) {
	return c.getAccountInfoAt(ctx, account, "confirmed")
}

// GetAccountInfoProcessed is GetAccountInfo at "processed" commitment, the
// commitment the watcher's programSubscribe/logsSubscribe feed uses.
func (c *Client) GetAccountInfoProcessed(ctx context.Context, account string) (*AccountValue, error) {
	return c.getAccountInfoAt(ctx, account, "processed")
}

func (c *Client) getAccountInfoAt(ctx context.Context, account, commitment string) (*AccountValue, error) {
	params := []interface{}{
		account,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": commitment,
		},
	}

	var result withContextValue[*AccountValue]
	if err := c.Call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, fmt.Errorf("getAccountInfo(%s): %w", account, err)
	}
	return result.Value, nil
}

// GetMultipleAccounts batches an account-info fetch, preserving input
// order; entries for non-existent accounts are nil.
func (c *Client) GetMultipleAccounts(ctx context.Context, accounts []string) ([]*AccountValue, error) {
	params := []interface{}{
		accounts,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	var result withContextValue[[]*AccountValue]
	if err := c.Call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, fmt.Errorf("getMultipleAccounts: %w", err)
	}
	return result.Value, nil
}

// EpochInfo is the result of getEpochInfo.
type EpochInfo struct {
	Epoch     uint64 `json:"epoch"`
	SlotIndex uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
	AbsoluteSlot uint64 `json:"absoluteSlot"`
}

// GetEpochInfo reports the current epoch and the slot position within it.
func (c *Client) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	var result EpochInfo
	if err := c.Call(ctx, "getEpochInfo", []interface{}{}, &result); err != nil {
		return nil, fmt.Errorf("getEpochInfo: %w", err)
	}
	return &result, nil
}

// TokenAmount is the value shape of getTokenAccountBalance.
type TokenAmount struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
	UiAmount *float64 `json:"uiAmount"`
}

// GetTokenAccountBalance reads a token account's balance as reported by
// the node. Liquidity estimation does not call it: it reads vault amounts
// from raw account bytes fetched with GetMultipleAccounts.
func (c *Client) GetTokenAccountBalance(ctx context.Context, tokenAccount string) (*TokenAmount, error) {
	params := []interface{}{tokenAccount}

	var result withContextValue[TokenAmount]
	if err := c.Call(ctx, "getTokenAccountBalance", params, &result); err != nil {
		return nil, fmt.Errorf("getTokenAccountBalance(%s): %w", tokenAccount, err)
	}
	return &result.Value, nil
}
