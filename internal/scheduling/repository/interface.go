package repository

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence surface the scheduling service depends on.
// *Repository implements it; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, rec *ScheduleRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRecord, error)
	LatestActive(ctx context.Context, projectID, scheduleType string) (*ScheduleRecord, error)
	SupersedeActive(ctx context.Context, projectID, scheduleType string) error
	Cancel(ctx context.Context, id uuid.UUID, note string) error
	ListByProject(ctx context.Context, projectID, scheduleType string) ([]ScheduleRecord, error)

	GetJobCache(ctx context.Context, projectID, categoryName string) (*JobCacheEntry, error)
	UpsertJobCache(ctx context.Context, entry *JobCacheEntry) error
	DeleteJobCache(ctx context.Context, projectID, categoryName string) error
}
