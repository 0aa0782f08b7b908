package enums

import "testing"

func TestParseTransactionStatus(t *testing.T) {
	status, err := ParseTransactionStatus("completed")
	if err != nil || status != TransactionStatusCompleted {
		t.Fatalf("unexpected parse result %q err=%v", status, err)
	}
	if _, err := ParseTransactionStatus("settled"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if TransactionStatusPending.IsTerminal() || !TransactionStatusCompleted.IsTerminal() || !TransactionStatusFailed.IsTerminal() {
		t.Fatal("only pending entries are unsettled")
	}
}

func TestTransactionTypeSign(t *testing.T) {
	if TransactionTypeDeposit.Sign() != 1 || TransactionTypeRefund.Sign() != 1 {
		t.Fatal("credits should be positive")
	}
	if TransactionTypePayment.Sign() != -1 || TransactionTypeWithdraw.Sign() != -1 {
		t.Fatal("debits should be negative")
	}
	if TransactionType("other").Sign() != 0 {
		t.Fatal("unknown types should not move the balance")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	if !OrderStatusPending.CanTransitionTo(OrderStatusPaid) {
		t.Fatal("pending orders can be paid")
	}
	if OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled) {
		t.Fatal("delivered orders are terminal")
	}
	if OrderStatusShipped.CanTransitionTo(OrderStatusPending) {
		t.Fatal("status must not move backwards")
	}
}

func TestParseWalletStatus(t *testing.T) {
	status, err := ParseWalletStatus("inactive")
	if err != nil || status != WalletStatusInactive {
		t.Fatalf("unexpected parse result %q err=%v", status, err)
	}
	if _, err := ParseWalletStatus("frozen"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestUserRoleIsValid(t *testing.T) {
	if !UserRoleAdmin.IsValid() || !UserRoleUser.IsValid() {
		t.Fatal("known roles should be valid")
	}
	if UserRole("vendor").IsValid() {
		t.Fatal("expected unknown role to be rejected")
	}
}
