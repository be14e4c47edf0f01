// Package scoring implements the sorted-set engine: atomic score writes
// under three update modes, TTL re-arming, and rank/top-N queries (§4.3).
package scoring

import (
	"github.com/google/uuid"
)

// UpdateMode governs how an incoming score combines with the stored score.
type UpdateMode string

const (
	ModeReplace   UpdateMode = "replace"
	ModeIncrement UpdateMode = "increment"
	ModeBest      UpdateMode = "best"
)

// SortOrder determines rank direction: desc ranks the highest score #1.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// Metadata mirrors the leaderboard's configuration as stored in the
// metadata hash colocated with its sorted set.
type Metadata struct {
	Name       string
	TenantID   uuid.UUID
	ProjectID  uuid.UUID
	TTLDays    int
	UpdateMode UpdateMode
	SortOrder  SortOrder
}

// defaultMetadata is used when the metadata hash hasn't been written yet
// (§4.3.1 step 1): replace/desc/no TTL.
func defaultMetadata() Metadata {
	return Metadata{UpdateMode: ModeReplace, SortOrder: SortDesc}
}

// UpdateRequest is one score submission.
type UpdateRequest struct {
	LeaderboardID uuid.UUID
	UserID        string
	Score         float64
	Increment     bool
}

// UpdateResult is what a single UpdateScore call reports back.
type UpdateResult struct {
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	FinalScore    float64   `json:"finalScore"`
	Rank          int64     `json:"rank"`
}

// Entry is one row of a Top or neighbor listing.
type Entry struct {
	Rank   int64   `json:"rank"`
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// TopResult is the response to a Top query.
type TopResult struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
}

// Neighbors holds the entries immediately above/below a rank lookup.
type Neighbors struct {
	Above []Entry `json:"above"`
	Below []Entry `json:"below"`
}

// RankResult is the response to a RankOf query. Rank and Score are nil when
// the member isn't present — a miss is never an error (§4.3.3).
type RankResult struct {
	Rank      *int64     `json:"rank"`
	Score     *float64   `json:"score"`
	Neighbors *Neighbors `json:"neighbors,omitempty"`
}

// writeDecision is the pure function apply(mode, sortOrder, current?, incoming)
// → decision referenced by the design notes: a tagged variant describing how
// the store write should be issued.
type writeDecision struct {
	skip      bool    // true when no write should occur (best-mode tie/loss)
	setScore  bool    // true for an absolute ZADD, false for a ZINCRBY
	absScore  float64 // the value to ZADD when setScore is true
	incrScore float64 // the delta to ZINCRBY when setScore is false
}

// apply is the pure decision function for §4.3.1 step 3. current is nil when
// the member has no stored score yet.
func apply(mode UpdateMode, sortOrder SortOrder, current *float64, incoming float64) writeDecision {
	switch mode {
	case ModeIncrement:
		return writeDecision{setScore: false, incrScore: incoming}
	case ModeBest:
		if current == nil {
			return writeDecision{setScore: true, absScore: incoming}
		}
		better := (sortOrder == SortDesc && incoming > *current) || (sortOrder == SortAsc && incoming < *current)
		if !better {
			return writeDecision{skip: true}
		}
		return writeDecision{setScore: true, absScore: incoming}
	default: // replace
		return writeDecision{setScore: true, absScore: incoming}
	}
}

// effectiveMode resolves the update mode for a single request: the metadata
// mode, unless the request forces increment (§4.3.1 step 2).
func effectiveMode(meta Metadata, req UpdateRequest) UpdateMode {
	if req.Increment {
		return ModeIncrement
	}
	return meta.UpdateMode
}
