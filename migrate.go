package financial

import (
	"context"
	"strings"
)

// RepairReport summarizes a repair pass over the transaction set.
type RepairReport struct {
	Scanned  int      // transactions examined
	Repaired int      // transactions mutated
	Skipped  []string // ids that were broken but could not be repaired
}

// RepairLegacyDebtReferences attaches the given debt account to legacy
// transactions that carry no account reference at all. Early versions of the
// data recorded debt payments by category only; such rows violate the
// one-account-reference invariant and are invisible to balance reporting.
//
// Only transactions whose category marks them as debt payments are
// attached; other orphans are reported in Skipped, never guessed at.
// The pass is idempotent: a second run over a repaired set mutates nothing.
func (m *Manager) RepairLegacyDebtReferences(ctx context.Context, debtAccountID string) (RepairReport, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return RepairReport{}, err
	}
	if _, err := m.store.DebtAccount(ctx, debtAccountID); err != nil {
		return RepairReport{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var report RepairReport
	for _, t := range m.index.All() {
		report.Scanned++
		if _, _, ok := t.AccountRef(); ok {
			continue
		}
		if !isDebtPaymentCategory(t.Category) {
			report.Skipped = append(report.Skipped, t.ID)
			m.log.Warn().Str("id", t.ID).Str("category", t.Category).
				Msg("orphan transaction left unrepaired")
			continue
		}
		t.DebtAccountID = debtAccountID
		if err := m.store.UpdateTransaction(ctx, t.ID, t); err != nil {
			return report, err
		}
		m.index.Update(t.ID, t)
		report.Repaired++
	}

	if report.Repaired > 0 {
		m.invalidateReads()
		m.log.Info().Int("repaired", report.Repaired).Int("scanned", report.Scanned).
			Str("debtAccount", debtAccountID).Msg("legacy debt references attached")
	}
	return report, nil
}

// isDebtPaymentCategory reports whether a category marks a debt payment.
func isDebtPaymentCategory(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "debt payment", "debt", "payment":
		return true
	}
	return false
}
