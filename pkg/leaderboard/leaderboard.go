// Package leaderboard implements Leaderboard Control: CRUD over
// leaderboards and their seasons, plus the event emission that keeps the
// Scoring Engine's metadata hash in sync (§4.4).
package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

// Leaderboard is a named ranking surface within a project.
type Leaderboard struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	TenantID       uuid.UUID
	Name           string
	Description    string
	SortOrder      string // "desc" | "asc"
	UpdateMode     string // "replace" | "increment" | "best"
	ResetSchedule  string
	TTLDays        int
	IsActive       bool
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Season is a control-plane time window over a leaderboard, with no
// sorted-set side effects (§4.4).
type Season struct {
	ID            uuid.UUID
	LeaderboardID uuid.UUID
	Name          string
	StartsAt      time.Time
	EndsAt        *time.Time
	IsActive      bool
	CreatedAt     time.Time
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Name          string
	Description   string
	SortOrder     string
	UpdateMode    string
	ResetSchedule string
	TTLDays       int
	Metadata      map[string]any
}

// UpdateRequest carries only the fields the caller wants to change; nil
// means "leave unchanged" for pointer fields.
type UpdateRequest struct {
	Name          *string
	Description   *string
	SortOrder     *string
	UpdateMode    *string
	ResetSchedule *string
	TTLDays       *int
	IsActive      *bool
	Metadata      map[string]any
}

// metadataAffecting reports whether applying req would change any field
// that's part of the Scoring Engine's metadata hash: name, sortOrder,
// updateMode, ttlDays.
func metadataAffecting(current Leaderboard, req UpdateRequest) bool {
	if req.Name != nil && *req.Name != current.Name {
		return true
	}
	if req.SortOrder != nil && *req.SortOrder != current.SortOrder {
		return true
	}
	if req.UpdateMode != nil && *req.UpdateMode != current.UpdateMode {
		return true
	}
	if req.TTLDays != nil && *req.TTLDays != current.TTLDays {
		return true
	}
	return false
}

func applyUpdate(current Leaderboard, req UpdateRequest) Leaderboard {
	next := current
	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.SortOrder != nil {
		next.SortOrder = *req.SortOrder
	}
	if req.UpdateMode != nil {
		next.UpdateMode = *req.UpdateMode
	}
	if req.ResetSchedule != nil {
		next.ResetSchedule = *req.ResetSchedule
	}
	if req.TTLDays != nil {
		next.TTLDays = *req.TTLDays
	}
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		next.Metadata = req.Metadata
	}
	return next
}
