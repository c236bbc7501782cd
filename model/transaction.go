package model

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

const (
	TransactionTypeDeposit     = "deposit"
	TransactionTypeLLMUsage    = "llm_usage"
	TransactionTypeTransferOut = "transfer_out"
	TransactionTypeTransferIn  = "transfer_in"
	TransactionTypeConversion  = "conversion"
)

// TransactionMetadata is a typed key/value map persisted as a JSON column.
type TransactionMetadata map[string]any

func (m TransactionMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal transaction metadata")
	}
	return string(data), nil
}

func (m *TransactionMetadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported metadata column type %T", value)
	}
	return errors.Wrap(json.Unmarshal(data, m), "unmarshal transaction metadata")
}

// Transaction is an append-only journal entry describing one balance change.
// Amount is always positive; the sign is implied by Type. Every row is
// written inside the same store transaction that mutated the balance, and is
// never updated afterwards.
type Transaction struct {
	Id            string              `json:"id" gorm:"primaryKey;size:32"`
	AccountId     string              `json:"account_id" gorm:"size:64;index:idx_account_created,priority:1"`
	Type          string              `json:"type" gorm:"size:16;index"`
	Currency      string              `json:"currency" gorm:"size:8"`
	Amount        int64               `json:"amount" gorm:"bigint"`
	BalanceBefore int64               `json:"balance_before" gorm:"bigint"`
	BalanceAfter  int64               `json:"balance_after" gorm:"bigint"`
	Description   string              `json:"description" gorm:"type:text"`
	Metadata      TransactionMetadata `json:"metadata" gorm:"type:text"`
	RequestId     string              `json:"request_id" gorm:"size:64;default:''"`
	CreatedAt     int64               `json:"created_at" gorm:"bigint;autoCreateTime:milli;index:idx_account_created,priority:2"`
}

// GetAccountTransactions returns journal entries for one account, newest
// first, with keyset pagination: startAfter names the last transaction id of
// the previous page.
func GetAccountTransactions(ctx context.Context, uid string, limit int, startAfter string) ([]*Transaction, error) {
	query := DB.WithContext(ctx).Where("account_id = ?", uid)

	if startAfter != "" {
		var cursor Transaction
		err := DB.WithContext(ctx).
			Where("account_id = ? AND id = ?", uid, startAfter).
			First(&cursor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.Errorf("unknown startAfter transaction: %s", startAfter)
			}
			return nil, errors.Wrap(err, "resolve pagination cursor")
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.Id,
		)
	}

	var transactions []*Transaction
	err := query.Order("created_at desc, id desc").Limit(limit).Find(&transactions).Error
	if err != nil {
		return nil, errors.Wrapf(err, "fetch transactions for %s", uid)
	}
	return transactions, nil
}
