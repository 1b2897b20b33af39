package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cart"
	"github.com/LightDreamhs/MyPetShop3.0/internal/money"
)

// Mode tags the two kinds of submission.
type Mode string

const (
	ModeService Mode = "service"
	ModeProduct Mode = "product"
)

var (
	ErrInvalidAmount      = money.ErrInvalidAmount
	ErrEmptyCart          = errors.New("cart is empty, nothing to check out")
	ErrInvalidQuantity    = errors.New("every cart line needs a quantity of at least 1")
	ErrAmountTooLarge     = cart.ErrLineTooLarge
	ErrItemRequired       = errors.New("consumption item is required")
	ErrCustomerRequired   = errors.New("customer is required")
	ErrCustomerName       = errors.New("customer name is required")
	ErrInvalidDate        = errors.New("invalid date")
	ErrBalanceNeedsMember = errors.New("balance payment requires a member customer")
	ErrIllegalTransition  = errors.New("illegal checkout state transition")
	ErrUnsupportedMode    = errors.New("unsupported submission mode")
)

// ValidationError blocks a submission before any network call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// Submission is either a ServiceSubmission or a ProductSubmission.
type Submission interface {
	Mode() Mode
}

// ServiceSubmission records one free-text service for a customer, then
// optionally posts it to the ledger and deducts the member balance.
type ServiceSubmission struct {
	CustomerID        int64
	Date              string
	Item              string
	Problem           string
	Suggestion        string
	AmountInput       string
	RecordTransaction bool
	UseBalance        bool
}

func (ServiceSubmission) Mode() Mode { return ModeService }

// ProductSubmission sells the cart contents for an operator-entered total.
// The upstream sale endpoint applies all side effects atomically.
type ProductSubmission struct {
	CustomerID         *int64
	CustomerName       string
	Cart               cart.Cart
	ManualTotalInput   string
	SaleDate           string
	RecordToAccounting bool
	UseBalance         bool
}

func (ProductSubmission) Mode() Mode { return ModeProduct }

type validService struct {
	ServiceSubmission
	date        string
	amountCents int64
	hasAmount   bool
}

func validateService(sub ServiceSubmission) (validService, error) {
	if sub.CustomerID <= 0 {
		return validService{}, invalid("customerId", ErrCustomerRequired)
	}
	sub.Item = strings.TrimSpace(sub.Item)
	if sub.Item == "" {
		return validService{}, invalid("item", ErrItemRequired)
	}
	date, err := NormalizeDateTime(sub.Date)
	if err != nil {
		return validService{}, invalid("date", err)
	}
	cents, present, err := money.ParseOptional(sub.AmountInput)
	if err != nil {
		return validService{}, invalid("amount", err)
	}
	return validService{ServiceSubmission: sub, date: date, amountCents: cents, hasAmount: present}, nil
}

type validProduct struct {
	ProductSubmission
	saleDate   string
	totalCents int64
}

func validateProduct(sub ProductSubmission) (validProduct, error) {
	sub.CustomerName = strings.TrimSpace(sub.CustomerName)
	if sub.CustomerName == "" {
		return validProduct{}, invalid("customerName", ErrCustomerName)
	}
	if sub.Cart.IsEmpty() {
		return validProduct{}, invalid("items", ErrEmptyCart)
	}
	var computed int64
	for _, line := range sub.Cart.Lines() {
		if line.Quantity < 1 {
			return validProduct{}, invalid("items", fmt.Errorf("%w: %s", ErrInvalidQuantity, line.ProductName))
		}
		if !line.InRange() || computed > money.MaxCents-line.Subtotal() {
			return validProduct{}, invalid("items", fmt.Errorf("%w: %s", ErrAmountTooLarge, line.ProductName))
		}
		computed += line.Subtotal()
	}
	total, err := money.ParseRequired(sub.ManualTotalInput)
	if err != nil {
		return validProduct{}, invalid("totalAmount", err)
	}
	if sub.UseBalance && (sub.CustomerID == nil || *sub.CustomerID <= 0) {
		return validProduct{}, invalid("useBalance", ErrBalanceNeedsMember)
	}
	saleDate, err := NormalizeDateTime(sub.SaleDate)
	if err != nil {
		return validProduct{}, invalid("saleDate", err)
	}
	return validProduct{ProductSubmission: sub, saleDate: saleDate, totalCents: total}, nil
}

// ServerDateTimeLayout is the shape the upstream expects for dates.
const ServerDateTimeLayout = "2006-01-02 15:04:05"

var inputLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	ServerDateTimeLayout,
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeDateTime converts a datetime-local or date input to
// "yyyy-MM-dd HH:mm:ss". It is a pure string transform; no time zone
// conversion happens.
func NormalizeDateTime(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	for _, layout := range inputLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(ServerDateTimeLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}
