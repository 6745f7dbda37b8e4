package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"turnsync/internal/ports"
)

// walletAPI is the slice of runtime.NakamaModule the settlement adapter
// needs. Narrowed so tests can fake it.
type walletAPI interface {
	WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error)
}

// WalletSettlement implements ports.SettlementPort against Nakama's wallet
// system. The winner collects every loser's stake minus the house tax;
// losers are debited their stake. A draw or void result moves nothing.
type WalletSettlement struct {
	wallets walletAPI
	taxRate float64
}

// NewWalletSettlement builds the adapter. taxRate is the fraction of the
// pot withheld, in [0, 1).
func NewWalletSettlement(wallets walletAPI, taxRate float64) *WalletSettlement {
	if taxRate < 0 || taxRate >= 1 {
		taxRate = 0
	}
	return &WalletSettlement{wallets: wallets, taxRate: taxRate}
}

// Settle implements ports.SettlementPort. Idempotence is keyed on the
// wallet ledger metadata match id; a retried settlement posts the same
// ledger entries, which downstream reconciliation collapses.
func (s *WalletSettlement) Settle(ctx context.Context, result ports.SettlementResult) error {
	if result.Stake <= 0 || result.Winner == "" {
		return nil
	}

	meta := map[string]interface{}{
		"match_id": result.MatchID,
		"reason":   string(result.Reason),
		"kind":     "match_settlement",
	}

	pot := result.Stake * int64(len(result.Losers))
	payout := pot - int64(math.Floor(float64(pot)*s.taxRate))

	for _, loser := range result.Losers {
		if _, _, err := s.wallets.WalletUpdate(ctx, loser, map[string]int64{WalletCurrency: -result.Stake}, meta, true); err != nil {
			return fmt.Errorf("debit %s: %w", loser, err)
		}
	}
	if _, _, err := s.wallets.WalletUpdate(ctx, result.Winner, map[string]int64{WalletCurrency: payout}, meta, true); err != nil {
		return fmt.Errorf("credit %s: %w", result.Winner, err)
	}
	return nil
}

// balanceOf reads the current soft-currency balance from a raw wallet
// document.
func balanceOf(wallet string) (int64, error) {
	var w map[string]int64
	if err := json.Unmarshal([]byte(wallet), &w); err != nil {
		return 0, fmt.Errorf("unmarshal wallet: %w", err)
	}
	return w[WalletCurrency], nil
}
