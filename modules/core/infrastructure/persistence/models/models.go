package models

import (
	"database/sql"
	"time"
)

type Tenant struct {
	ID        string
	Name      string
	Domain    sql.NullString
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID          uint
	TenantID    string // UUID stored as string
	Email       string
	DisplayName string
	Role        string
	Password    sql.NullString
	APIToken    sql.NullString
	LastLogin   sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
