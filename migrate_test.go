package financial

import (
	"context"
	"testing"
)

func TestRepairLegacyDebtReferences(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedDebt(DebtAccount{ID: "visa", Name: "Visa", Balance: dec("200.00")})

	// legacy rows: debt payments recorded by category only, no account
	orphanPayment := cashTx("t1", 5, "-50.00", "debt payment")
	orphanPayment.CashAccountID = ""
	orphanUnknown := cashTx("t2", 6, "-10.00", "groceries")
	orphanUnknown.CashAccountID = ""
	healthy := cashTx("t3", 7, "-30.00", "groceries")
	s.seedTx(orphanPayment, orphanUnknown, healthy)

	m, _ := newTestManager(t, s)

	report, err := m.RepairLegacyDebtReferences(ctx, "visa")
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 3 || report.Repaired != 1 {
		t.Errorf("report = %+v, want 3 scanned, 1 repaired", report)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "t2" {
		t.Errorf("Skipped = %v, want [t2]: orphans are never guessed at", report.Skipped)
	}

	repaired, err := m.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if repaired.DebtAccountID != "visa" {
		t.Errorf("DebtAccountID = %q, want visa", repaired.DebtAccountID)
	}
	// the repaired row now shows up in account lookups
	byAccount, err := m.List(ctx, Filters{AccountType: AccountDebt, AccountID: "visa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byAccount) != 1 || byAccount[0].ID != "t1" {
		t.Errorf("ByAccount after repair = %v", ids(byAccount))
	}
}

// Re-running the repair over an already repaired set mutates nothing.
func TestRepairLegacyDebtReferencesIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedDebt(DebtAccount{ID: "visa", Name: "Visa", Balance: dec("200.00")})
	orphan := cashTx("t1", 5, "-50.00", "payment")
	orphan.CashAccountID = ""
	s.seedTx(orphan)

	m, _ := newTestManager(t, s)

	first, err := m.RepairLegacyDebtReferences(ctx, "visa")
	if err != nil {
		t.Fatal(err)
	}
	if first.Repaired != 1 {
		t.Fatalf("first run = %+v", first)
	}

	second, err := m.RepairLegacyDebtReferences(ctx, "visa")
	if err != nil {
		t.Fatal(err)
	}
	if second.Repaired != 0 || len(second.Skipped) != 0 {
		t.Errorf("second run = %+v, want zero mutations", second)
	}
}

func TestRepairUnknownDebtAccount(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newFakeStore())

	if _, err := m.RepairLegacyDebtReferences(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("err = %v, want not-found for the target account", err)
	}
}
