package payments

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/codenerix/payments/internal/modules/currencies"
)

// Browser-facing actions a gateway redirect may carry.
const (
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
	ActionSuccess = "success"
)

// ReverseAutorender makes the confirm/cancel endpoints render the built-in
// status page instead of redirecting to a caller URL. ReverseJSON makes
// them answer in machine-readable form, for pure API integrations.
const (
	ReverseAutorender = "autorender"
	ReverseJSON       = "reverse"
)

// MaxOrder is the largest order number whose reference still fits in seven
// base36 digits.
const MaxOrder uint64 = 78364164096

// PaymentRequest is the aggregate root of one payment attempt. Rows are
// append-mostly: after creation only ref, error fields, cancelled and the
// gateway audit blobs change.
type PaymentRequest struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// Locator is the unguessable public handle; it is the only identifier
	// exposed outside the system.
	Locator string `gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_requests_locator" json:"locator"`

	// Ref is the gateway's own reference, set when the gateway authorises.
	Ref *string `gorm:"type:varchar(50)" json:"ref"`

	// Order is the merchant-side order number; OrderRef is its fixed-width
	// base36 form required by gateways with short order fields.
	Order    uint64 `gorm:"column:order_no;not null" json:"order"`
	OrderRef string `gorm:"column:order_ref;type:varchar(8);not null" json:"order_ref"`

	// Reverse is either "autorender" or a return URL template with {action}
	// and {locator} placeholders.
	Reverse string `gorm:"type:varchar(64);not null;default:autorender" json:"reverse"`

	CurrencyID uint                `gorm:"not null;index" json:"-"`
	Currency   currencies.Currency `gorm:"foreignKey:CurrencyID" json:"currency"`

	Platform string `gorm:"type:varchar(20);not null" json:"platform"`
	Protocol string `gorm:"type:varchar(10);not null" json:"protocol"`

	// Real records the environment the request was created in. A request is
	// only ever processed in the environment that created it.
	Real bool `gorm:"not null" json:"real"`

	Error    bool    `gorm:"not null" json:"error"`
	ErrorTxt *string `gorm:"column:error_txt;type:text" json:"-"`

	Cancelled bool `gorm:"not null" json:"cancelled"`

	Total decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"total"`
	Notes string          `gorm:"type:varchar(30);not null" json:"notes"`

	Request     datatypes.JSON `gorm:"column:request" json:"-"`
	RequestDate *time.Time     `gorm:"column:request_date;type:datetime(3)" json:"request_date"`
	Answer      datatypes.JSON `gorm:"column:answer" json:"-"`
	AnswerDate  *time.Time     `gorm:"column:answer_date;type:datetime(3)" json:"answer_date"`

	// Feedback keeps whatever the adapter needs between the browser
	// confirmation and settlement (PayPal stores the payment snapshot here).
	Feedback datatypes.JSON `gorm:"column:feedback" json:"-"`

	IP string `gorm:"type:varchar(45);not null" json:"-"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null" json:"updated_at"`
}

func (PaymentRequest) TableName() string { return "payment_requests" }

// IsPaid reports whether the payment settled: an answer exists and carries a
// gateway reference without error.
func (pr *PaymentRequest) IsPaid(answers []PaymentAnswer) bool {
	for _, a := range answers {
		if !a.Error && a.Ref != nil && *a.Ref != "" {
			return true
		}
	}
	return false
}

// PaymentConfirmation audits one browser return leg (confirm or cancel).
// Every attempt is recorded, including the ones that end in an error.
type PaymentConfirmation struct {
	ID uint `gorm:"primaryKey" json:"-"`

	PaymentID uint           `gorm:"column:payment_id;not null;index" json:"-"`
	Payment   PaymentRequest `gorm:"foreignKey:PaymentID" json:"-"`

	Ref    *string        `gorm:"type:varchar(50)" json:"ref"`
	Action string         `gorm:"type:varchar(7);not null" json:"action"`
	Data   datatypes.JSON `gorm:"column:data" json:"-"`

	Error    bool    `gorm:"not null" json:"error"`
	ErrorTxt *string `gorm:"column:error_txt;type:text" json:"-"`

	IP string `gorm:"type:varchar(45);not null" json:"-"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null" json:"created_at"`
}

func (PaymentConfirmation) TableName() string { return "payment_confirmations" }

// PaymentAnswer audits one server-to-server gateway notification. A
// successful answer (error=false, ref set) is the authoritative settlement
// record; at most one may exist per payment.
type PaymentAnswer struct {
	ID uint `gorm:"primaryKey" json:"-"`

	PaymentID uint           `gorm:"column:payment_id;not null;index" json:"-"`
	Payment   PaymentRequest `gorm:"foreignKey:PaymentID" json:"-"`

	Ref *string `gorm:"type:varchar(50)" json:"ref"`

	Error    bool    `gorm:"not null" json:"error"`
	ErrorTxt *string `gorm:"column:error_txt;type:text" json:"-"`

	Request     datatypes.JSON `gorm:"column:request" json:"-"`
	RequestDate *time.Time     `gorm:"column:request_date;type:datetime(3)" json:"request_date"`
	Answer      datatypes.JSON `gorm:"column:answer" json:"-"`
	AnswerDate  *time.Time     `gorm:"column:answer_date;type:datetime(3)" json:"answer_date"`

	IP string `gorm:"type:varchar(45);not null" json:"-"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null" json:"created_at"`
}

func (PaymentAnswer) TableName() string { return "payment_answers" }
