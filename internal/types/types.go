package types

import (
	"time"

	"cronchat/internal/models"
)

type SendMessageResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    models.Message `json:"data"`
}

// LatestMessageResponse keeps the plain text under "message" for pollers that
// only render text.
type LatestMessageResponse struct {
	Message *string         `json:"message"`
	Data    *models.Message `json:"data"`
}

type CronResponse struct {
	Message  string `json:"message"`
	Schedule string `json:"schedule,omitempty"`
}

type CronStatus struct {
	Running  bool       `json:"running"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	Ticks    int64      `json:"ticks"`
}

type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

type OnlineResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type EnvReport struct {
	Message string            `json:"message"`
	EnvVars map[string]string `json:"envVars"`
	AppEnv  string            `json:"appEnv"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
