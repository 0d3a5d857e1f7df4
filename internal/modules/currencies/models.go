package currencies

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is reference data: seeded by an operator, never mutated by the
// payment flows. Price is the exchange rate against the base currency.
type Currency struct {
	ID      uint            `gorm:"primaryKey"`
	Name    string          `gorm:"type:varchar(15);not null;uniqueIndex:ux_currencies_name"`
	Symbol  string          `gorm:"type:varchar(2);not null;uniqueIndex:ux_currencies_symbol"`
	ISO4217 string          `gorm:"column:iso4217;type:char(3);not null;uniqueIndex:ux_currencies_iso4217"`
	Price   decimal.Decimal `gorm:"type:decimal(10,4);not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Currency) TableName() string { return "currencies" }

func (c Currency) String() string {
	return c.Name + " (" + c.Symbol + ")"
}
