package db

import (
	"context"
	"fmt"
	"strings"

	"qr-entry/internal/database"
	"qr-entry/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateAccount inserts the account and its profile in one transaction.
func (d *DB) CreateAccount(ctx context.Context, account *models.Account, role models.Role) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(account).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err, "username") || database.IsUniqueViolation(err, "email") {
				return models.ErrDuplicateAccount
			}
			return fmt.Errorf("insert account: %w", err)
		}
		profile := &models.Profile{AccountID: account.ID, Role: role}
		if _, err := tx.NewInsert().Model(profile).Exec(ctx); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		account.Profile = profile
		return nil
	})
}

func (d *DB) getBy(ctx context.Context, column string, value interface{}) (*models.Account, error) {
	var account models.Account
	err := d.Bun.NewSelect().
		Model(&account).
		Relation("Profile").
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *DB) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return d.getBy(ctx, "id", id)
}

func (d *DB) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return d.getBy(ctx, "username", username)
}

// GetAccountByEmail matches case-insensitively.
func (d *DB) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := d.Bun.NewSelect().
		Model(&account).
		Relation("Profile").
		Where("LOWER(account.email) = ?", strings.ToLower(email)).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
