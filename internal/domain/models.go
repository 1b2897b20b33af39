package domain

import "time"

// Roles issued by the upstream auth service.
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

type Actor struct {
	Username      string
	Role          string
	UpstreamToken string
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
	User        User   `json:"user"`
}

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PriceCents  *int64 `json:"price"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// DefaultUnitPrice is the price a new cart line starts with. Products
// without a list price start at zero and must be priced by the operator.
func (p Product) DefaultUnitPrice() int64 {
	if p.PriceCents == nil || *p.PriceCents < 0 {
		return 0
	}
	return *p.PriceCents
}

type Page[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

type Customer struct {
	ID           int64  `json:"id"`
	PetName      string `json:"petName"`
	OwnerName    string `json:"ownerName"`
	Phone        string `json:"phone"`
	MemberLevel  int    `json:"memberLevel"`
	BalanceCents int64  `json:"balance"`
	Avatar       string `json:"avatar,omitempty"`
	PetType      string `json:"petType,omitempty"`
	Breed        string `json:"breed,omitempty"`
	Age          *int   `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// IsMember reports whether the customer holds any membership level.
func (c Customer) IsMember() bool {
	return c.MemberLevel > 0
}

type ConsumptionRecord struct {
	ID          int64  `json:"id"`
	CustomerID  int64  `json:"customerId"`
	Date        string `json:"date"`
	Item        string `json:"item"`
	Problem     string `json:"problem,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
	AmountCents *int64 `json:"amount,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type ConsumptionRecordCreate struct {
	Date        string `json:"date"`
	Item        string `json:"item"`
	Problem     string `json:"problem,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
	AmountCents *int64 `json:"amount,omitempty"`
}

type LedgerType string

const (
	LedgerIncome  LedgerType = "income"
	LedgerExpense LedgerType = "expense"
)

// LedgerEntry is an income/expense row in the accounting ledger.
type LedgerEntry struct {
	ID          int64      `json:"id"`
	Type        LedgerType `json:"type"`
	AmountCents int64      `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	CreatedAt   string     `json:"createdAt,omitempty"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

type LedgerEntryCreate struct {
	Type        LedgerType `json:"type"`
	AmountCents int64      `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
}

type BalanceTransactionType string

const (
	BalanceRecharge BalanceTransactionType = "RECHARGE"
	BalanceDeduct   BalanceTransactionType = "DEDUCT"
	BalanceRefund   BalanceTransactionType = "REFUND"
)

// BalanceTransaction is the upstream audit entry for a balance mutation.
// BalanceAfter is always computed by the upstream ledger.
type BalanceTransaction struct {
	ID                 int64                  `json:"id"`
	CustomerID         int64                  `json:"customerId"`
	Type               BalanceTransactionType `json:"type"`
	AmountCents        int64                  `json:"amount"`
	BalanceBeforeCents int64                  `json:"balanceBefore"`
	BalanceAfterCents  int64                  `json:"balanceAfter"`
	Description        string                 `json:"description,omitempty"`
	OperatorID         *int64                 `json:"operatorId,omitempty"`
	OperatorName       string                 `json:"operatorName,omitempty"`
	CreatedAt          string                 `json:"createdAt,omitempty"`
}

type BalanceChange struct {
	AmountCents int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type SaleItem struct {
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPrice"`
	SubtotalCents  int64  `json:"subtotal"`
}

type SaleCreate struct {
	CustomerID         *int64     `json:"customerId,omitempty"`
	CustomerName       string     `json:"customerName"`
	Items              []SaleItem `json:"items"`
	TotalAmountCents   int64      `json:"totalAmount"`
	SaleDate           string     `json:"saleDate"`
	RecordToAccounting bool       `json:"recordToAccounting"`
	UseBalance         bool       `json:"useBalance,omitempty"`
}

type Sale struct {
	ID               int64  `json:"id"`
	TotalAmountCents int64  `json:"totalAmount"`
	SaleDate         string `json:"saleDate"`
}

type StockUpdate struct {
	ID    int64 `json:"id"`
	Stock int   `json:"stock"`
}

type Statistics struct {
	TotalIncomeCents  int64 `json:"totalIncome"`
	TotalExpenseCents int64 `json:"totalExpense"`
	NetIncomeCents    int64 `json:"netIncome"`
	IncomeCount       int   `json:"incomeCount"`
	ExpenseCount      int   `json:"expenseCount"`
}

type MonthlyStatistics struct {
	YearMonth         string `json:"yearMonth"`
	TotalIncomeCents  int64  `json:"totalIncome"`
	TotalExpenseCents int64  `json:"totalExpense"`
	NetIncomeCents    int64  `json:"netIncome"`
}

type NetIncomeReport struct {
	Days      int    `json:"days"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Statistics
}

type CustomerOverview struct {
	Customer Customer                `json:"customer"`
	Records  Page[ConsumptionRecord] `json:"records"`
}

type BalanceAdvice struct {
	CustomerID   int64  `json:"customerId"`
	BalanceCents int64  `json:"balance"`
	AmountCents  int64  `json:"amount"`
	Sufficient   bool   `json:"sufficient"`
	Warning      string `json:"warning,omitempty"`
}

type BalanceChangeResponse struct {
	Customer Customer `json:"customer"`
}

type StockAdjustResponse struct {
	ProductID int64          `json:"productId"`
	Adjusted  bool           `json:"adjusted"`
	Stock     int            `json:"stock"`
	Products  *Page[Product] `json:"products,omitempty"`
}

// Console request payloads. Amount fields are the raw decimal strings the
// operator typed; they are converted to cents by the service.

type CartItemAddRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

type CartItemUpdateRequest struct {
	Field string `json:"field" validate:"required,oneof=quantity unitPrice"`
	Value int64  `json:"value" validate:"lte=9007199254740992"`
}

type ServiceCheckoutRequest struct {
	CustomerID        int64  `json:"customerId" validate:"required,gt=0"`
	Date              string `json:"date" validate:"required"`
	Item              string `json:"item" validate:"required,max=200"`
	Problem           string `json:"problem,omitempty" validate:"max=1000"`
	Suggestion        string `json:"suggestion,omitempty" validate:"max=1000"`
	Amount            string `json:"amount,omitempty"`
	RecordTransaction bool   `json:"recordTransaction"`
	UseBalance        bool   `json:"useBalance"`
}

type ProductCheckoutRequest struct {
	CustomerID         *int64 `json:"customerId,omitempty" validate:"omitempty,gt=0"`
	CustomerName       string `json:"customerName" validate:"required,max=100"`
	ManualTotal        string `json:"manualTotal"`
	SaleDate           string `json:"saleDate" validate:"required"`
	RecordToAccounting bool   `json:"recordToAccounting"`
	UseBalance         bool   `json:"useBalance"`
}

type BalanceChangeRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

type DeleteRequest struct {
	Confirm    bool   `json:"confirm"`
	ManagerPIN string `json:"managerPin,omitempty"`
}

type JournalEntry struct {
	ID          string    `json:"id"`
	Operator    string    `json:"operator"`
	Mode        string    `json:"mode"`
	CustomerID  *int64    `json:"customerId,omitempty"`
	AmountCents int64     `json:"amount"`
	State       string    `json:"state"`
	Committed   []string  `json:"committed"`
	Failed      []string  `json:"failed"`
	Warnings    []string  `json:"warnings"`
	CreatedAt   time.Time `json:"createdAt"`
}

type JournalQuery struct {
	From  time.Time
	To    time.Time
	State string
	Limit int
}

// AuditLog records a destructive or balance-changing console action.
type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actorRole"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
