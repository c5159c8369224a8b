package model

import "testing"

func TestRedemptionStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    RedemptionStatus
		to      RedemptionStatus
		allowed bool
	}{
		{
			name:    "pending to processing",
			from:    RedemptionStatusPending,
			to:      RedemptionStatusProcessing,
			allowed: true,
		},
		{
			name:    "pending to completed",
			from:    RedemptionStatusPending,
			to:      RedemptionStatusCompleted,
			allowed: true,
		},
		{
			name:    "pending to rejected",
			from:    RedemptionStatusPending,
			to:      RedemptionStatusRejected,
			allowed: true,
		},
		{
			name:    "processing to completed",
			from:    RedemptionStatusProcessing,
			to:      RedemptionStatusCompleted,
			allowed: true,
		},
		{
			name:    "processing to rejected",
			from:    RedemptionStatusProcessing,
			to:      RedemptionStatusRejected,
			allowed: true,
		},
		{
			name:    "processing back to pending",
			from:    RedemptionStatusProcessing,
			to:      RedemptionStatusPending,
			allowed: false,
		},
		{
			name:    "pending to pending",
			from:    RedemptionStatusPending,
			to:      RedemptionStatusPending,
			allowed: false,
		},
		{
			name:    "completed is terminal",
			from:    RedemptionStatusCompleted,
			to:      RedemptionStatusRejected,
			allowed: false,
		},
		{
			name:    "rejected is terminal",
			from:    RedemptionStatusRejected,
			to:      RedemptionStatusProcessing,
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestRedemptionStatusTerminal(t *testing.T) {
	if RedemptionStatusPending.Terminal() || RedemptionStatusProcessing.Terminal() {
		t.Fatalf("pending and processing must not be terminal")
	}
	if !RedemptionStatusCompleted.Terminal() || !RedemptionStatusRejected.Terminal() {
		t.Fatalf("completed and rejected must be terminal")
	}
}

func TestPostStatusValid(t *testing.T) {
	for _, s := range []PostStatus{PostStatusDraft, PostStatusPending, PostStatusPublished, PostStatusRejected} {
		if !s.Valid() {
			t.Fatalf("status %q must be valid", s)
		}
	}
	if PostStatus("archived").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestPaymentMethodValid(t *testing.T) {
	if !PaymentMethodBankTransfer.Valid() || !PaymentMethodEWallet.Valid() {
		t.Fatalf("known payment methods must be valid")
	}
	if PaymentMethod("cash").Valid() {
		t.Fatalf("unknown payment method must be invalid")
	}
}
