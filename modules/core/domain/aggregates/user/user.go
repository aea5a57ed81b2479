package user

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account inside a tenant. The email doubles as the assignment
// key on CRM records, so it is always stored in canonical form.
type User interface {
	ID() uint
	TenantID() uuid.UUID
	Email() string
	DisplayName() string
	Role() Role
	PasswordHash() string
	APIToken() string
	LastLogin() *time.Time
	CreatedAt() time.Time
	UpdatedAt() time.Time

	CheckPassword(password string) bool
	SetDisplayName(name string) User
	SetRole(role Role) User
	SetPassword(password string) (User, error)
	RotateAPIToken() (User, error)
	SetLastLogin(at time.Time) User
}

// CanonicalEmail normalizes an email for storage and for matching against
// record assignees.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Option func(u *user)

func WithID(id uint) Option {
	return func(u *user) {
		u.id = id
	}
}

func WithDisplayName(name string) Option {
	return func(u *user) {
		u.displayName = name
	}
}

func WithPasswordHash(hash string) Option {
	return func(u *user) {
		u.passwordHash = hash
	}
}

func WithAPIToken(token string) Option {
	return func(u *user) {
		u.apiToken = token
	}
}

func WithLastLogin(at *time.Time) Option {
	return func(u *user) {
		u.lastLogin = at
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(u *user) {
		u.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(u *user) {
		u.updatedAt = updatedAt
	}
}

func New(tenantID uuid.UUID, email string, role Role, opts ...Option) User {
	u := &user{
		tenantID:  tenantID,
		email:     CanonicalEmail(email),
		role:      role,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type user struct {
	id           uint
	tenantID     uuid.UUID
	email        string
	displayName  string
	role         Role
	passwordHash string
	apiToken     string
	lastLogin    *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

func (u *user) ID() uint {
	return u.id
}

func (u *user) TenantID() uuid.UUID {
	return u.tenantID
}

func (u *user) Email() string {
	return u.email
}

func (u *user) DisplayName() string {
	return u.displayName
}

func (u *user) Role() Role {
	return u.role
}

func (u *user) PasswordHash() string {
	return u.passwordHash
}

func (u *user) APIToken() string {
	return u.apiToken
}

func (u *user) LastLogin() *time.Time {
	return u.lastLogin
}

func (u *user) CreatedAt() time.Time {
	return u.createdAt
}

func (u *user) UpdatedAt() time.Time {
	return u.updatedAt
}

func (u *user) CheckPassword(password string) bool {
	if u.passwordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) == nil
}

func (u *user) SetDisplayName(name string) User {
	out := *u
	out.displayName = name
	out.updatedAt = time.Now()
	return &out
}

func (u *user) SetRole(role Role) User {
	out := *u
	out.role = role
	out.updatedAt = time.Now()
	return &out
}

func (u *user) SetPassword(password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	out := *u
	out.passwordHash = string(hash)
	out.updatedAt = time.Now()
	return &out, nil
}

func (u *user) RotateAPIToken() (User, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	out := *u
	out.apiToken = hex.EncodeToString(buf)
	out.updatedAt = time.Now()
	return &out, nil
}

func (u *user) SetLastLogin(at time.Time) User {
	out := *u
	out.lastLogin = &at
	return &out
}
