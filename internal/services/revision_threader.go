package services

import (
	"sort"
	"time"

	"aipreview/internal/models"

	"github.com/google/uuid"
)

// LegacyRemarkPlaceholder is the root body synthesized for submissions that
// carry only a legacy free-text reply with no structured review history.
const LegacyRemarkPlaceholder = "City reviewer remark is unavailable for this cycle."

// RevisionCycle is one remark → replies exchange, reconstructed from the
// flat review-action and feedback streams.
type RevisionCycle struct {
	Number      int                     `json:"number"`
	RootBody    string                  `json:"root_body"`
	RequestedBy uuid.UUID               `json:"requested_by"`
	RequestedAt time.Time               `json:"requested_at"`
	Replies     []models.FeedbackRecord `json:"replies"`
	Legacy      bool                    `json:"legacy,omitempty"`
}

// BuildRevisionCycles reconstructs revision cycles oldest-first. Each
// request_revision action roots exactly one cycle whose root body is the
// action note. A reply belongs to the cycle whose root is the most recent
// request_revision before the reply's thread root was created; threaded
// records follow their root so an exchange never straddles two cycles.
//
// When there are no actions and no structured records but a legacy free-text
// reply survives, one cycle is synthesized around it with a placeholder root.
func BuildRevisionCycles(actions []models.ReviewAction, feedback []models.FeedbackRecord, legacy string) []RevisionCycle {
	var requests []models.ReviewAction
	for _, a := range actions {
		if a.Kind == models.ActionRequestRevision {
			requests = append(requests, a)
		}
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})

	if len(requests) == 0 {
		if len(actions) == 0 && len(feedback) == 0 && legacy != "" {
			return []RevisionCycle{{
				Number:   1,
				RootBody: LegacyRemarkPlaceholder,
				Replies: []models.FeedbackRecord{{
					Kind: models.FeedbackOversightNote,
					Body: legacy,
				}},
				Legacy: true,
			}}
		}
		return nil
	}

	cycles := make([]RevisionCycle, len(requests))
	for i, req := range requests {
		body := ""
		if req.Note.Valid {
			body = req.Note.String
		}
		cycles[i] = RevisionCycle{
			Number:      i + 1,
			RootBody:    body,
			RequestedBy: req.ReviewerID,
			RequestedAt: req.CreatedAt,
		}
	}

	byID := make(map[uuid.UUID]models.FeedbackRecord, len(feedback))
	for _, rec := range feedback {
		byID[rec.ID] = rec
	}

	for _, rec := range feedback {
		root := resolveThreadRoot(rec, byID)
		// Only revision-reply threads participate; citizen feedback on the
		// same submission keeps its own life.
		if root.Kind != models.FeedbackOversightNote {
			continue
		}
		idx := cycleIndexFor(requests, root.CreatedAt)
		cycles[idx].Replies = append(cycles[idx].Replies, rec)
	}

	for i := range cycles {
		replies := cycles[i].Replies
		sort.SliceStable(replies, func(a, b int) bool {
			return replies[a].CreatedAt.Before(replies[b].CreatedAt)
		})
	}

	return cycles
}

// resolveThreadRoot walks the parent chain as far as the provided records
// allow. An orphaned reply acts as its own root.
func resolveThreadRoot(rec models.FeedbackRecord, byID map[uuid.UUID]models.FeedbackRecord) models.FeedbackRecord {
	current := rec
	for depth := 0; current.ParentFeedbackID != nil && depth < 64; depth++ {
		parent, ok := byID[*current.ParentFeedbackID]
		if !ok {
			break
		}
		current = parent
	}
	return current
}

// cycleIndexFor returns the index of the most recent request at or before t.
// A record that somehow predates the first request lands in the first cycle.
func cycleIndexFor(requests []models.ReviewAction, t time.Time) int {
	idx := 0
	for i, req := range requests {
		if !req.CreatedAt.After(t) {
			idx = i
		}
	}
	return idx
}

// CyclePage returns one cycle per page, oldest first; page is 1-based. The
// second return is the total page count. A page out of range returns nil.
func CyclePage(cycles []RevisionCycle, page int) (*RevisionCycle, int) {
	total := len(cycles)
	if page < 1 || page > total {
		return nil, total
	}
	cycle := cycles[page-1]
	return &cycle, total
}
