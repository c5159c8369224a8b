// Package validation проверяет платёжные реквизиты заявок на обмен поинтов.
package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/grapadi/points-system/internal/model"
)

// ErrInvalidPaymentDetails возвращается, когда реквизиты выплаты не проходят проверку.
var ErrInvalidPaymentDetails = errors.New("invalid payment details")

var validate = validator.New()

// Для bank_transfer обязательны банковские поля, для e_wallet — поля кошелька.
// Номера счетов и кошельков состоят только из цифр.
type paymentDetailsRules struct {
	Method          string `validate:"required,oneof=bank_transfer e_wallet"`
	BankName        string `validate:"required_if=Method bank_transfer,omitempty,max=100"`
	AccountNumber   string `validate:"required_if=Method bank_transfer,omitempty,numeric,min=6,max=32"`
	AccountHolder   string `validate:"required_if=Method bank_transfer,omitempty,max=100"`
	EWalletProvider string `validate:"required_if=Method e_wallet,omitempty,max=50"`
	EWalletNumber   string `validate:"required_if=Method e_wallet,omitempty,numeric,min=8,max=20"`
	EWalletName     string `validate:"required_if=Method e_wallet,omitempty,max=100"`
}

// ValidatePaymentDetails проверяет реквизиты выплаты в зависимости от способа.
func ValidatePaymentDetails(d model.PaymentDetails) error {
	rules := paymentDetailsRules{
		Method:          string(d.Method),
		BankName:        d.BankName,
		AccountNumber:   d.AccountNumber,
		AccountHolder:   d.AccountHolder,
		EWalletProvider: d.EWalletProvider,
		EWalletNumber:   d.EWalletNumber,
		EWalletName:     d.EWalletName,
	}

	if err := validate.Struct(rules); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return fmt.Errorf("%w: field %s failed rule %s",
				ErrInvalidPaymentDetails, validationErrs[0].Field(), validationErrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPaymentDetails, err)
	}

	return nil
}
