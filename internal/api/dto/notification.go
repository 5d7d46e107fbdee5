package dto

import "github.com/hugh/nerlude/internal/database/models"

type NotificationListResponse struct {
	PaginatedResponse
	UnreadCount int64 `json:"unread_count"`
}

type NotificationResponse struct {
	Message      string               `json:"message,omitempty"`
	Notification *models.Notification `json:"notification"`
}

type MarkAllReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}
