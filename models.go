package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record. Accounts are never physically deleted by the
// auth core; disabling sets IsActive to false.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	IsActive     bool      `bun:"is_active,notnull" json:"is_active"`
	IsSuperuser  bool      `bun:"is_superuser,notnull" json:"is_superuser"`
	IsVerified   bool      `bun:"is_verified,notnull" json:"is_verified"`
	Timezone     Timezone  `bun:"timezone,notnull" json:"timezone,omitempty"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// OAuthAccount links a user to an external provider identity. Provider
// supplied tokens are opaque secrets; they never appear in logs or events.
type OAuthAccount struct {
	bun.BaseModel `bun:"table:oauth_accounts,alias:oacc"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         int64      `bun:"user_id,notnull" json:"user_id,omitempty"`
	User           *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Provider       string     `bun:"oauth_name,notnull" json:"oauth_name,omitempty"`
	AccountID      string     `bun:"account_id,notnull" json:"account_id,omitempty"`
	AccountEmail   string     `bun:"account_email,notnull" json:"account_email,omitempty"`
	AccessToken    string     `bun:"access_token,notnull" json:"-"`
	RefreshToken   string     `bun:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// constraint agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
