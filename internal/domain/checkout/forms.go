package checkout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/qorikusi/storefront/internal/domain/form"
	"github.com/qorikusi/storefront/internal/domain/payment"
)

// ValidationError lists form fields that failed validation, keyed by field
// name.
type ValidationError = form.Error

var forms *form.Validator

func init() { forms = newFormValidator() }

func newFormValidator() *form.Validator {
	v := form.New()
	v.RegisterStructValidation(shippingRules, ShippingForm{})
	v.Message("phone", "must have 9 digits")
	v.Message("cardNumber", "must have 13 to 19 digits")
	v.Message("expiry", "must be MM/YY")
	v.Message("cvv", "must have 3 or 4 digits")
	return v
}

// ShippingForm is the first checkout step.
type ShippingForm struct {
	FirstName   string              `json:"firstName" validate:"required,min=2"`
	LastName    string              `json:"lastName" validate:"required,min=2"`
	Email       string              `json:"email" validate:"required,email"`
	Phone       string              `json:"phone" validate:"required,len=9,numeric"`
	Address     string              `json:"address" validate:"required,min=10"`
	City        string              `json:"city" validate:"required"`
	Reference   string              `json:"reference,omitempty"`
	ReceiptType payment.ReceiptType `json:"receiptType" validate:"required,oneof=individual business"`
	TaxID       string              `json:"taxId"`
	// BusinessName is printed on business receipts instead of the
	// customer's name.
	BusinessName string `json:"businessName,omitempty"`
}

// CustomerName returns the name the receipt is issued to.
func (f ShippingForm) CustomerName() string {
	if f.ReceiptType == payment.ReceiptBusiness && strings.TrimSpace(f.BusinessName) != "" {
		return strings.TrimSpace(f.BusinessName)
	}
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

// Validate checks every field and reports all failures at once.
func (f ShippingForm) Validate() error {
	trimmed := f
	for _, s := range []*string{
		&trimmed.FirstName, &trimmed.LastName, &trimmed.Email, &trimmed.Phone,
		&trimmed.Address, &trimmed.City, &trimmed.TaxID,
	} {
		*s = strings.TrimSpace(*s)
	}
	return forms.Struct(trimmed)
}

// shippingRules checks the tax id against the receipt type once the type
// itself is known.
func shippingRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(ShippingForm)
	if !f.ReceiptType.Valid() {
		return
	}
	if err := ValidateTaxID(f.ReceiptType, f.TaxID); err != nil {
		sl.ReportError(f.TaxID, "taxId", "TaxID", "digits", strconv.Itoa(f.ReceiptType.TaxIDLength()))
	}
}

// ValidateTaxID checks id against the digit count required by the receipt
// type: 8 for individual receipts, 11 for business receipts.
func ValidateTaxID(t payment.ReceiptType, id string) error {
	n := t.TaxIDLength()
	if n == 0 {
		return fmt.Errorf("unknown receipt type %q", t)
	}
	if !forms.Valid(strings.TrimSpace(id), fmt.Sprintf("len=%d,numeric", n)) {
		return fmt.Errorf("must have %d digits", n)
	}
	return nil
}

// PaymentForm is the second checkout step. Card fields are only read when
// Method is card.
type PaymentForm struct {
	Method     payment.Method `json:"method" validate:"required,oneof=card wallet transfer"`
	CardName   string         `json:"cardName,omitempty" validate:"required_if=Method card"`
	CardNumber string         `json:"cardNumber,omitempty" validate:"required_if=Method card,omitempty,numeric,min=13,max=19"`
	Expiry     string         `json:"expiry,omitempty" validate:"required_if=Method card,omitempty,datetime=01/06"`
	CVV        string         `json:"cvv,omitempty" validate:"required_if=Method card,omitempty,numeric,min=3,max=4"`
}

// Validate checks the method and, for card payments, the card fields.
func (f PaymentForm) Validate() error {
	check := PaymentForm{Method: f.Method}
	if f.Method == payment.MethodCard {
		check.CardName = strings.TrimSpace(f.CardName)
		check.CardNumber = strings.ReplaceAll(f.CardNumber, " ", "")
		check.Expiry = strings.TrimSpace(f.Expiry)
		check.CVV = strings.TrimSpace(f.CVV)
	}
	return forms.Struct(check)
}
