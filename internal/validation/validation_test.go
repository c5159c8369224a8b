package validation

import (
	"errors"
	"testing"

	"github.com/grapadi/points-system/internal/model"
)

func TestValidatePaymentDetails(t *testing.T) {
	tests := []struct {
		name    string
		details model.PaymentDetails
		wantErr bool
	}{
		{
			name: "valid bank transfer",
			details: model.PaymentDetails{
				Method:        model.PaymentMethodBankTransfer,
				BankName:      "BCA",
				AccountNumber: "1234567890",
				AccountHolder: "Budi Santoso",
			},
			wantErr: false,
		},
		{
			name: "valid e-wallet",
			details: model.PaymentDetails{
				Method:          model.PaymentMethodEWallet,
				EWalletProvider: "GoPay",
				EWalletNumber:   "081234567890",
				EWalletName:     "Budi Santoso",
			},
			wantErr: false,
		},
		{
			name: "bank transfer without account number",
			details: model.PaymentDetails{
				Method:        model.PaymentMethodBankTransfer,
				BankName:      "BCA",
				AccountHolder: "Budi Santoso",
			},
			wantErr: true,
		},
		{
			name: "non-numeric account number",
			details: model.PaymentDetails{
				Method:        model.PaymentMethodBankTransfer,
				BankName:      "BCA",
				AccountNumber: "12-34-56",
				AccountHolder: "Budi Santoso",
			},
			wantErr: true,
		},
		{
			name: "e-wallet without provider",
			details: model.PaymentDetails{
				Method:        model.PaymentMethodEWallet,
				EWalletNumber: "081234567890",
				EWalletName:   "Budi Santoso",
			},
			wantErr: true,
		},
		{
			name:    "unknown method",
			details: model.PaymentDetails{Method: model.PaymentMethod("cash")},
			wantErr: true,
		},
		{
			name:    "empty method",
			details: model.PaymentDetails{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaymentDetails(tt.details)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPaymentDetails) {
					t.Fatalf("err = %v, want ErrInvalidPaymentDetails", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
