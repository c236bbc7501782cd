package model

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/random"
)

// Ledger errors surfaced to handlers. These abort the enclosing store
// transaction without retry; the HTTP layer maps them to status codes.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrSenderNotFound    = errors.New("sender account not found")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountTooSmall    = errors.New("amount too small to convert")
	ErrBalanceOverflow   = errors.New("credit would overflow balance")
)

// runLedgerTransaction executes fn inside a store transaction, retrying a
// bounded number of times on backend concurrency aborts (SQLite lock,
// serialization failure, deadlock victim). Business errors pass through
// untouched so a failed debit is never retried into a double debit: fn only
// re-runs when the backend guarantees nothing committed.
func runLedgerTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < config.LedgerMaxRetries; attempt++ {
		err = runWithSQLiteBusyRetry(ctx, func() error {
			return DB.WithContext(ctx).Transaction(fn, transactionOptions())
		})
		if err == nil || !isRetryableTxError(err) {
			return err
		}
	}
	return errors.Wrap(err, "ledger transaction retries exhausted")
}

func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not serialize access") || // postgres 40001
		strings.Contains(msg, "deadlock")
}

// debitBalance decrements one balance row, refusing to go below zero. The
// conditional UPDATE is the whole correctness story: the WHERE clause re-reads
// the balance under the row lock, so two concurrent debits are totally
// ordered and the loser observes the winner's write.
func debitBalance(tx *gorm.DB, accountId string, code string, amount int64) (after int64, err error) {
	result := tx.Model(&Balance{}).
		Where("account_id = ? AND currency = ? AND amount >= ?", accountId, code, amount).
		Update("amount", gorm.Expr("amount - ?", amount))
	if result.Error != nil {
		return 0, errors.Wrapf(result.Error, "debit %d %s from %s", amount, code, accountId)
	}
	if result.RowsAffected == 0 {
		// No row passed the guard: either the balance is short or the row
		// does not exist yet, which is the same thing as a zero balance.
		return 0, ErrInsufficientFunds
	}

	var row Balance
	if err := tx.Where("account_id = ? AND currency = ?", accountId, code).First(&row).Error; err != nil {
		return 0, errors.Wrapf(err, "read %s balance after debit", code)
	}
	return row.Amount, nil
}

// creditBalance increments one balance row, creating it at zero first for
// accounts that predate the currency. The guard in the WHERE clause mirrors
// the debit guard: a credit that would wrap the int64 column past its ceiling
// matches no row and the transaction aborts.
func creditBalance(tx *gorm.DB, accountId string, code string, amount int64) (after int64, err error) {
	if err := tx.Where(Balance{AccountId: accountId, Currency: code}).
		FirstOrCreate(&Balance{}).Error; err != nil {
		return 0, errors.Wrapf(err, "ensure %s balance row for %s", code, accountId)
	}
	result := tx.Model(&Balance{}).
		Where("account_id = ? AND currency = ? AND amount <= ?", accountId, code, math.MaxInt64-amount).
		Update("amount", gorm.Expr("amount + ?", amount))
	if result.Error != nil {
		return 0, errors.Wrapf(result.Error, "credit %d %s to %s", amount, code, accountId)
	}
	if result.RowsAffected == 0 {
		// The row exists (FirstOrCreate above), so the only way to miss the
		// guard is a balance too large to take the credit.
		return 0, ErrBalanceOverflow
	}

	var row Balance
	if err := tx.Where("account_id = ? AND currency = ?", accountId, code).First(&row).Error; err != nil {
		return 0, errors.Wrapf(err, "read %s balance after credit", code)
	}
	return row.Amount, nil
}

func accountExists(tx *gorm.DB, uid string) (bool, error) {
	var count int64
	if err := tx.Model(&Account{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "check account %s", uid)
	}
	return count > 0, nil
}

// UsageDetail carries the billing facts recorded on an llm_usage entry.
type UsageDetail struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	RequestId        string
}

// DebitUsage atomically charges costMicros against the account's USD balance
// and appends the llm_usage journal entry. It is called only after a
// successful upstream response; the authoritative funds check is the
// conditional update in here, not the pre-check the relay did earlier.
func DebitUsage(ctx context.Context, accountId string, costMicros int64, detail UsageDetail) (balanceAfter int64, err error) {
	if costMicros < 0 {
		return 0, errors.Errorf("cost cannot be negative: %d", costMicros)
	}

	err = runLedgerTransaction(ctx, func(tx *gorm.DB) error {
		exists, err := accountExists(tx, accountId)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}

		after, err := debitBalance(tx, accountId, "USD", costMicros)
		if err != nil {
			return err
		}
		balanceAfter = after

		entry := &Transaction{
			Id:            random.GetUUID(),
			AccountId:     accountId,
			Type:          TransactionTypeLLMUsage,
			Currency:      "USD",
			Amount:        costMicros,
			BalanceBefore: after + costMicros,
			BalanceAfter:  after,
			Description:   "LLM usage: " + detail.Model,
			RequestId:     detail.RequestId,
			Metadata: TransactionMetadata{
				"provider":         detail.Provider,
				"model":            detail.Model,
				"promptTokens":     detail.PromptTokens,
				"completionTokens": detail.CompletionTokens,
			},
		}
		return errors.Wrap(tx.Create(entry).Error, "append llm_usage entry")
	})
	return balanceAfter, err
}

// Deposit credits an account in one currency and appends the deposit entry.
// Admin-only at the HTTP boundary.
func Deposit(ctx context.Context, accountId string, amount int64, code string, description string) (balanceAfter int64, err error) {
	if amount <= 0 {
		return 0, errors.Errorf("deposit amount must be positive: %d", amount)
	}

	err = runLedgerTransaction(ctx, func(tx *gorm.DB) error {
		exists, err := accountExists(tx, accountId)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}

		after, err := creditBalance(tx, accountId, code, amount)
		if err != nil {
			return err
		}
		balanceAfter = after

		entry := &Transaction{
			Id:            random.GetUUID(),
			AccountId:     accountId,
			Type:          TransactionTypeDeposit,
			Currency:      code,
			Amount:        amount,
			BalanceBefore: after - amount,
			BalanceAfter:  after,
			Description:   description,
		}
		return errors.Wrap(tx.Create(entry).Error, "append deposit entry")
	})
	return balanceAfter, err
}

// Transfer moves amount between two accounts and appends the paired
// transfer_out/transfer_in entries. The pair commits iff the balance writes
// commit. Balance rows are touched in lexicographic account-id order so two
// opposing transfers cannot deadlock on backends that lock rows eagerly.
func Transfer(ctx context.Context, senderId string, recipientId string, amount int64, code string, description string) (senderBalance int64, err error) {
	if amount <= 0 {
		return 0, errors.Errorf("transfer amount must be positive: %d", amount)
	}
	if senderId == recipientId {
		return 0, errors.Errorf("cannot transfer to self")
	}

	err = runLedgerTransaction(ctx, func(tx *gorm.DB) error {
		senderExists, err := accountExists(tx, senderId)
		if err != nil {
			return err
		}
		if !senderExists {
			return ErrSenderNotFound
		}
		recipientExists, err := accountExists(tx, recipientId)
		if err != nil {
			return err
		}
		if !recipientExists {
			return ErrRecipientNotFound
		}

		var senderAfter, recipientAfter int64
		if senderId < recipientId {
			if senderAfter, err = debitBalance(tx, senderId, code, amount); err != nil {
				return err
			}
			if recipientAfter, err = creditBalance(tx, recipientId, code, amount); err != nil {
				return err
			}
		} else {
			if recipientAfter, err = creditBalance(tx, recipientId, code, amount); err != nil {
				return err
			}
			if senderAfter, err = debitBalance(tx, senderId, code, amount); err != nil {
				return err
			}
		}
		senderBalance = senderAfter

		outEntry := &Transaction{
			Id:            random.GetUUID(),
			AccountId:     senderId,
			Type:          TransactionTypeTransferOut,
			Currency:      code,
			Amount:        amount,
			BalanceBefore: senderAfter + amount,
			BalanceAfter:  senderAfter,
			Description:   description,
			Metadata:      TransactionMetadata{"counterparty": recipientId},
		}
		if err := tx.Create(outEntry).Error; err != nil {
			return errors.Wrap(err, "append transfer_out entry")
		}
		inEntry := &Transaction{
			Id:            random.GetUUID(),
			AccountId:     recipientId,
			Type:          TransactionTypeTransferIn,
			Currency:      code,
			Amount:        amount,
			BalanceBefore: recipientAfter - amount,
			BalanceAfter:  recipientAfter,
			Description:   description,
			Metadata:      TransactionMetadata{"counterparty": senderId},
		}
		return errors.Wrap(tx.Create(inEntry).Error, "append transfer_in entry")
	})
	return senderBalance, err
}

// ConvertAmount computes how many smallest units of the target currency an
// amount of the source currency buys, given both USD prices in integer cents.
// The triple product can exceed 64 bits (amount up to 2^63, cents up to
// ~10^7, unit factor up to 10^9), so the arithmetic runs in big.Int. Integer
// division truncates; the caller rejects results <= 0 as too small.
func ConvertAmount(amount int64, fromCents int64, toCents int64, fromUnit int64, toUnit int64) int64 {
	if amount <= 0 || fromCents <= 0 || toCents <= 0 {
		return 0
	}
	numerator := new(big.Int).Mul(big.NewInt(amount), big.NewInt(fromCents))
	numerator.Mul(numerator, big.NewInt(toUnit))
	denominator := new(big.Int).Mul(big.NewInt(fromUnit), big.NewInt(toCents))
	converted := numerator.Quo(numerator, denominator)
	if !converted.IsInt64() {
		// Target balance column is int64; a conversion that overflows it is
		// refused rather than silently truncated.
		return 0
	}
	return converted.Int64()
}

// Convert atomically moves value between two currencies of one account at a
// quote frozen by the caller (the rate fetch happens outside the store
// transaction). rateUsed is recorded for audit only.
func Convert(ctx context.Context, accountId string, from string, to string, amount int64, converted int64, rateUsed float64) (balances map[string]int64, err error) {
	if amount <= 0 {
		return nil, errors.Errorf("conversion amount must be positive: %d", amount)
	}
	if converted <= 0 {
		return nil, ErrAmountTooSmall
	}

	err = runLedgerTransaction(ctx, func(tx *gorm.DB) error {
		exists, err := accountExists(tx, accountId)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}

		fromAfter, err := debitBalance(tx, accountId, from, amount)
		if err != nil {
			return err
		}
		toAfter, err := creditBalance(tx, accountId, to, converted)
		if err != nil {
			return err
		}

		entry := &Transaction{
			Id:            random.GetUUID(),
			AccountId:     accountId,
			Type:          TransactionTypeConversion,
			Currency:      from,
			Amount:        amount,
			BalanceBefore: fromAfter + amount,
			BalanceAfter:  fromAfter,
			Description:   "Converted " + from + " to " + to,
			Metadata: TransactionMetadata{
				"fromCurrency": from,
				"toCurrency":   to,
				"fromAmount":   amount,
				"toAmount":     converted,
				"rateUsed":     rateUsed,
			},
		}
		if err := tx.Create(entry).Error; err != nil {
			return errors.Wrap(err, "append conversion entry")
		}

		balances = map[string]int64{from: fromAfter, to: toAfter}
		return nil
	})
	return balances, err
}
