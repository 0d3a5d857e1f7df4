package currencies

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ByISO(ctx context.Context, iso string) (Currency, error) {
	var c Currency
	err := r.db.WithContext(ctx).First(&c, "iso4217 = ?", iso).Error
	return c, err
}

func (r *Repo) ByID(ctx context.Context, id uint) (Currency, error) {
	var c Currency
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return c, err
}

func (r *Repo) List(ctx context.Context) ([]Currency, error) {
	var cs []Currency
	err := r.db.WithContext(ctx).Order("iso4217").Find(&cs).Error
	return cs, err
}

// EnsureEUR returns the EUR currency, creating the row when the reference
// table has not been seeded yet. Payment creation falls back to it when the
// caller gives no currency.
func (r *Repo) EnsureEUR(ctx context.Context) (Currency, error) {
	c, err := r.ByISO(ctx, "EUR")
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Currency{}, err
	}

	c = Currency{
		Name:    "Euro",
		Symbol:  "€",
		ISO4217: "EUR",
		Price:   decimal.NewFromInt(1),
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return Currency{}, err
	}
	return c, nil
}
