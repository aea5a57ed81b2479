package dtos

import (
	"encoding/json"
	"time"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
)

type ChangeLogResponse struct {
	ID        uint            `json:"id"`
	TenantID  string          `json:"tenant_id"`
	UserID    *uint           `json:"user_id,omitempty"`
	Entity    string          `json:"entity"`
	RecordID  string          `json:"record_id"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Diff      json.RawMessage `json:"diff,omitempty"`
	IP        string          `json:"ip,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewChangeLogResponse(log *changelog.ChangeLog) ChangeLogResponse {
	return ChangeLogResponse{
		ID:        log.ID,
		TenantID:  log.TenantID.String(),
		UserID:    log.UserID,
		Entity:    log.Entity,
		RecordID:  log.RecordID.String(),
		Action:    log.Action,
		Before:    log.Before,
		After:     log.After,
		Diff:      log.Diff,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: log.CreatedAt,
	}
}

type ChangeLogListResponse struct {
	Items []ChangeLogResponse `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
}

func NewChangeLogListResponse(logs []*changelog.ChangeLog, total int64, page int) ChangeLogListResponse {
	items := make([]ChangeLogResponse, 0, len(logs))
	for _, log := range logs {
		items = append(items, NewChangeLogResponse(log))
	}
	return ChangeLogListResponse{Items: items, Total: total, Page: page}
}

type AuthenticationLogResponse struct {
	ID        uint      `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    *uint     `json:"user_id,omitempty"`
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAuthenticationLogResponse(log *authlog.AuthenticationLog) AuthenticationLogResponse {
	return AuthenticationLogResponse{
		ID:        log.ID,
		TenantID:  log.TenantID.String(),
		UserID:    log.UserID,
		Email:     log.Email,
		Success:   log.Success,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: log.CreatedAt,
	}
}

type AuthenticationLogListResponse struct {
	Items []AuthenticationLogResponse `json:"items"`
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
}

func NewAuthenticationLogListResponse(
	logs []*authlog.AuthenticationLog,
	total int64,
	page int,
) AuthenticationLogListResponse {
	items := make([]AuthenticationLogResponse, 0, len(logs))
	for _, log := range logs {
		items = append(items, NewAuthenticationLogResponse(log))
	}
	return AuthenticationLogListResponse{Items: items, Total: total, Page: page}
}
