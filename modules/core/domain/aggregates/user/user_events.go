package user

import "github.com/google/uuid"

type CreatedEvent struct {
	Result User
}

type UpdatedEvent struct {
	Result User
}

type DeletedEvent struct {
	Result User
}

// SignedInEvent fires after a successful password login.
type SignedInEvent struct {
	Result    User
	IP        string
	UserAgent string
}

// SignInFailedEvent fires on a rejected login attempt. Email is whatever the
// caller submitted, not necessarily a known account; TenantID stays zero
// when the email matched nothing.
type SignInFailedEvent struct {
	TenantID  uuid.UUID
	Email     string
	IP        string
	UserAgent string
}

// TokenRotatedEvent fires when a user's API token is regenerated.
type TokenRotatedEvent struct {
	Result User
}
