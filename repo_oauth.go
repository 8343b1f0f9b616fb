package users

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OAuthAccounts stores provider linkage records. The auth core only
// consumes it as a narrow store; OAuth flows themselves live elsewhere.
type OAuthAccounts interface {
	repository.Repository[*OAuthAccount]

	FindByProvider(ctx context.Context, provider, accountID string) (*OAuthAccount, error)
	FindByUserID(ctx context.Context, userID int64) ([]*OAuthAccount, error)
}

type oauthAccounts struct {
	repository.Repository[*OAuthAccount]
	db *bun.DB
}

var _ OAuthAccounts = (*oauthAccounts)(nil)

// NewOAuthAccountsRepository returns the oauth account linkage repository.
func NewOAuthAccountsRepository(db *bun.DB) OAuthAccounts {
	repo := repository.NewRepository[*OAuthAccount](db, repository.ModelHandlers[*OAuthAccount]{
		NewRecord: func() *OAuthAccount {
			return &OAuthAccount{}
		},
		GetID: func(record *OAuthAccount) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *OAuthAccount, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	})

	return &oauthAccounts{
		Repository: repo,
		db:         db,
	}
}

// FindByProvider looks up the link record for (provider, accountID), the
// pair the table is unique on.
func (r *oauthAccounts) FindByProvider(ctx context.Context, provider, accountID string) (*OAuthAccount, error) {
	record := &OAuthAccount{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.oauth_name = ? AND ?TableAlias.account_id = ?", provider, accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindByUserID returns every provider link for a user.
func (r *oauthAccounts) FindByUserID(ctx context.Context, userID int64) ([]*OAuthAccount, error) {
	var records []*OAuthAccount
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*OAuthAccount{}, nil
		}
		return nil, err
	}
	return records, nil
}
