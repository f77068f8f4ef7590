package services

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

const issuer = "backup-repository"

// Account is a user known to the in-process backup repository.
type Account struct {
	Username    string
	Email       string
	Password    string
	Permissions []string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Accounts authenticates users and issues HS256 tokens the same shape as
// the backup repository does.
type Accounts struct {
	mu       sync.RWMutex
	accounts map[string]Account
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAccounts(secret []byte, ttl time.Duration) *Accounts {
	return &Accounts{
		accounts: make(map[string]Account),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add registers or replaces an account.
func (a *Accounts) Add(account Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[account.Username] = account
}

// Login checks the credentials and returns a signed token with its expiry.
func (a *Accounts) Login(username, password string) (string, time.Time, error) {
	a.mu.RLock()
	account, ok := a.accounts[username]
	a.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) != 1 {
		zap.S().Named("accounts").Debugw("login rejected", "username", username)
		return "", time.Time{}, srvErrors.NewUnauthorizedError("invalid username or password")
	}

	now := a.now()
	expire := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expire),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   account.Username,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expire, nil
}

// Verify returns the account a token was issued to.
func (a *Accounts) Verify(token string) (Account, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Account{}, srvErrors.NewUnauthorizedError(err.Error())
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return Account{}, srvErrors.NewUnauthorizedError(err.Error())
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	account, ok := a.accounts[subject]
	if !ok {
		return Account{}, srvErrors.NewUnauthorizedError("account " + subject + " no longer exists")
	}
	return account, nil
}
