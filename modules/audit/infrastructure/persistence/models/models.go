package models

import "time"

type ChangeLog struct {
	ID        uint
	TenantID  string
	UserID    *uint
	Entity    string
	RecordID  string
	Action    string
	Before    []byte
	After     []byte
	Diff      []byte
	IP        string
	UserAgent string
	CreatedAt time.Time
}

type AuthenticationLog struct {
	ID        uint
	TenantID  string
	UserID    *uint
	Email     string
	Success   bool
	IP        string
	UserAgent string
	CreatedAt time.Time
}
