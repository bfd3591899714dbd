package chat

import (
	"context"

	"github.com/AzielCF/az-tgclean/pkg/timeutils"
)

// DeletionRequest selects the chats and the time window to clean.
type DeletionRequest struct {
	ChatIDs []string             `json:"chatIds"`
	Range   timeutils.Range      `json:"timeRange"`
	Custom  *timeutils.DateRange `json:"customRange,omitempty"`
}

// DeletionResult aggregates the outcome over every chat.
type DeletionResult struct {
	JobID        string   `json:"jobId"`
	Success      bool     `json:"success"`
	DeletedCount int      `json:"deletedCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors"`
	// PerChat is the number of messages deleted in each chat.
	PerChat map[string]int `json:"perChat"`
}

type IDeletionUsecase interface {
	Delete(ctx context.Context, req DeletionRequest) (DeletionResult, error)
}
