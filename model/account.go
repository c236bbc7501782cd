package model

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/often-ai/gateway/common/currency"
)

const (
	// AccountStatusActive is the only status the gateway acts on today; other
	// values are reserved and treated as opaque.
	AccountStatusActive = "active"
)

// Account is keyed by the verified identifier issued by the identity backend.
// Balances live in separate per-currency rows (see Balance) so debits can use
// single-row conditional updates.
type Account struct {
	Uid       string `json:"uid" gorm:"primaryKey;size:64"`
	Email     string `json:"email" gorm:"index"`
	Status    string `json:"status" gorm:"size:16;default:active"`
	CreatedAt int64  `json:"created_at" gorm:"bigint;autoCreateTime"`
}

// Balance is one account's holding in one currency, in the currency's
// smallest unit. Invariant: amount >= 0 at every committed state; the ledger
// enforces this with conditional updates, never with in-process locks.
type Balance struct {
	Id        int    `json:"id"`
	AccountId string `json:"account_id" gorm:"size:64;uniqueIndex:uidx_account_currency,priority:1"`
	Currency  string `json:"currency" gorm:"size:8;uniqueIndex:uidx_account_currency,priority:2"`
	Amount    int64  `json:"amount" gorm:"bigint;default:0"`
}

// CreateAccount inserts the account row plus a zero balance row for every
// supported currency. Called once per signup.
func CreateAccount(ctx context.Context, uid string, email string) error {
	if uid == "" {
		return errors.Errorf("account uid cannot be empty")
	}
	err := DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account := &Account{
			Uid:    uid,
			Email:  email,
			Status: AccountStatusActive,
		}
		if err := tx.Create(account).Error; err != nil {
			return errors.Wrap(err, "create account")
		}
		for _, code := range currency.Supported {
			if err := tx.Create(&Balance{AccountId: uid, Currency: code}).Error; err != nil {
				return errors.Wrapf(err, "create %s balance", code)
			}
		}
		return nil
	})
	return errors.Wrapf(err, "create account %s", uid)
}

// GetAccountByUid returns the account or ErrAccountNotFound.
func GetAccountByUid(ctx context.Context, uid string) (*Account, error) {
	account := &Account{}
	err := DB.WithContext(ctx).Where("uid = ?", uid).First(account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrapf(err, "fetch account %s", uid)
	}
	return account, nil
}

// GetBalances returns the account's balance in every supported currency,
// filling zero for currencies without a row (accounts created before a
// currency was added).
func GetBalances(ctx context.Context, uid string) (map[string]int64, error) {
	var rows []Balance
	err := DB.WithContext(ctx).Where("account_id = ?", uid).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "fetch balances for %s", uid)
	}

	balances := make(map[string]int64, len(currency.Supported))
	for _, code := range currency.Supported {
		balances[code] = 0
	}
	for _, row := range rows {
		balances[row.Currency] = row.Amount
	}
	return balances, nil
}

// GetBalance returns the account's balance in one currency, zero when no row
// exists yet.
func GetBalance(ctx context.Context, uid string, code string) (int64, error) {
	var row Balance
	err := DB.WithContext(ctx).Where("account_id = ? AND currency = ?", uid, code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "fetch %s balance for %s", code, uid)
	}
	return row.Amount, nil
}
