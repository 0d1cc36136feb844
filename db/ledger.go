package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/alwitt/modelregistry/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ======================================================================================
// Ledger accounts

// getLedgerAccountEntry find an account entry
func (d *databaseImpl) getLedgerAccountEntry(account string) (LedgerAccountDBEntry, bool, error) {
	var entry LedgerAccountDBEntry
	if tmp := d.db.Where("account = ?", account).First(&entry); tmp.Error != nil {
		if errors.Is(tmp.Error, gorm.ErrRecordNotFound) {
			return LedgerAccountDBEntry{}, false, nil
		}
		return LedgerAccountDBEntry{}, false, fmt.Errorf(
			"failed to fetch ledger account '%s' [%w]", account, tmp.Error,
		)
	}
	return entry, true, nil
}

/*
GetLedgerBalance fetch the available balance of an account.

An account with no ledger entry reads as zero balance.

	@param ctx context.Context - execution context
	@param account string - the account
	@returns available balance
*/
func (d *databaseImpl) GetLedgerBalance(
	_ context.Context, account string,
) (decimal.Decimal, error) {
	entry, found, err := d.getLedgerAccountEntry(account)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, nil
	}
	return entry.Balance, nil
}

/*
CreditAccount add funds to an account, creating the ledger entry if needed

	@param ctx context.Context - execution context
	@param account string - the account
	@param amount decimal.Decimal - amount to add
	@returns the account entry after the credit
*/
func (d *databaseImpl) CreditAccount(
	_ context.Context, account string, amount decimal.Decimal,
) (models.LedgerAccount, error) {
	entry, found, err := d.getLedgerAccountEntry(account)
	if err != nil {
		return models.LedgerAccount{}, err
	}

	if !found {
		newEntry := LedgerAccountDBEntry{
			LedgerAccount: models.LedgerAccount{Account: account, Balance: amount},
		}
		if err := d.validator.Struct(&newEntry); err != nil {
			return models.LedgerAccount{}, fmt.Errorf(
				"new ledger account '%s' is not valid [%w]", account, err,
			)
		}
		if tmp := d.db.Create(&newEntry); tmp.Error != nil {
			return models.LedgerAccount{}, fmt.Errorf(
				"new ledger account '%s' failed insert [%w]", account, tmp.Error,
			)
		}
		return newEntry.LedgerAccount, nil
	}

	entry.Balance = entry.Balance.Add(amount)
	if tmp := d.db.Model(&LedgerAccountDBEntry{}).Where(
		"account = ?", account,
	).Update("balance", entry.Balance); tmp.Error != nil {
		return models.LedgerAccount{}, fmt.Errorf(
			"failed to credit ledger account '%s' [%w]", account, tmp.Error,
		)
	}

	return entry.LedgerAccount, nil
}

/*
DebitAccount remove funds from an account.

The debit is refused when the remaining balance would fall below `keepAbove`,
the ledger's minimum-existence threshold.

	@param ctx context.Context - execution context
	@param account string - the account
	@param amount decimal.Decimal - amount to remove
	@param keepAbove decimal.Decimal - minimum balance the account must retain
*/
func (d *databaseImpl) DebitAccount(
	_ context.Context, account string, amount decimal.Decimal, keepAbove decimal.Decimal,
) error {
	entry, found, err := d.getLedgerAccountEntry(account)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("ledger account '%s' holds no funds [%w]", account, models.ErrInsufficientBalance)
	}

	remaining := entry.Balance.Sub(amount)
	if remaining.LessThan(keepAbove) {
		return fmt.Errorf(
			"ledger account '%s' cannot sustain debit of %s [%w]",
			account, amount.String(), models.ErrInsufficientBalance,
		)
	}

	if tmp := d.db.Model(&LedgerAccountDBEntry{}).Where(
		"account = ?", account,
	).Update("balance", remaining); tmp.Error != nil {
		return fmt.Errorf("failed to debit ledger account '%s' [%w]", account, tmp.Error)
	}

	return nil
}
