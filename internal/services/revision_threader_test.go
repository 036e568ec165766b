package services

import (
	"database/sql"
	"testing"
	"time"

	"aipreview/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threaderBase = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func requestAt(minute int, note string) models.ReviewAction {
	return models.ReviewAction{
		ID:           uuid.New(),
		ReviewerID:   uuid.New(),
		Kind:         models.ActionRequestRevision,
		Note:         sql.NullString{String: note, Valid: note != ""},
		CreatedAt:    threaderBase.Add(time.Duration(minute) * time.Minute),
	}
}

func replyAt(minute int, parent *uuid.UUID, kind models.FeedbackKind, body string) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:               uuid.New(),
		ParentFeedbackID: parent,
		Kind:             kind,
		Body:             body,
		CreatedAt:        threaderBase.Add(time.Duration(minute) * time.Minute),
	}
}

func TestBuildRevisionCyclesOnePerRequest(t *testing.T) {
	actions := []models.ReviewAction{
		requestAt(10, "first remark"),
		{ID: uuid.New(), Kind: models.ActionClaim, CreatedAt: threaderBase.Add(5 * time.Minute)},
		requestAt(30, "second remark"),
		requestAt(50, "third remark"),
	}

	cycles := BuildRevisionCycles(actions, nil, "")
	require.Len(t, cycles, 3)
	assert.Equal(t, 1, cycles[0].Number)
	assert.Equal(t, "first remark", cycles[0].RootBody)
	assert.Equal(t, "second remark", cycles[1].RootBody)
	assert.Equal(t, "third remark", cycles[2].RootBody)
	assert.True(t, cycles[0].RequestedAt.Before(cycles[1].RequestedAt))
	assert.False(t, cycles[0].Legacy)
}

func TestBuildRevisionCyclesAssignsRepliesByInterval(t *testing.T) {
	actions := []models.ReviewAction{
		requestAt(10, "first"),
		requestAt(40, "second"),
	}
	afterFirst := replyAt(20, nil, models.FeedbackOversightNote, "reply to first")
	afterSecond := replyAt(45, nil, models.FeedbackOversightNote, "reply to second")
	predating := replyAt(5, nil, models.FeedbackOversightNote, "before any request")

	cycles := BuildRevisionCycles(actions, []models.FeedbackRecord{afterSecond, afterFirst, predating}, "")
	require.Len(t, cycles, 2)

	require.Len(t, cycles[0].Replies, 2)
	assert.Equal(t, "before any request", cycles[0].Replies[0].Body)
	assert.Equal(t, "reply to first", cycles[0].Replies[1].Body)

	require.Len(t, cycles[1].Replies, 1)
	assert.Equal(t, "reply to second", cycles[1].Replies[0].Body)
}

func TestBuildRevisionCyclesThreadFollowsRoot(t *testing.T) {
	actions := []models.ReviewAction{
		requestAt(10, "first"),
		requestAt(40, "second"),
	}
	root := replyAt(20, nil, models.FeedbackOversightNote, "root in first cycle")
	// Written after the second request, but threaded under the first cycle's
	// root, so the exchange stays together.
	child := replyAt(50, &root.ID, models.FeedbackOversightNote, "late follow-up")

	cycles := BuildRevisionCycles(actions, []models.FeedbackRecord{root, child}, "")
	require.Len(t, cycles, 2)
	require.Len(t, cycles[0].Replies, 2)
	assert.Equal(t, "root in first cycle", cycles[0].Replies[0].Body)
	assert.Equal(t, "late follow-up", cycles[0].Replies[1].Body)
	assert.Empty(t, cycles[1].Replies)
}

func TestBuildRevisionCyclesIgnoresCitizenThreads(t *testing.T) {
	actions := []models.ReviewAction{requestAt(10, "remark")}
	question := replyAt(20, nil, models.FeedbackQuestion, "what is line 4?")
	answer := replyAt(25, &question.ID, models.FeedbackOversightNote, "equipment")
	reply := replyAt(30, nil, models.FeedbackOversightNote, "revision reply")

	cycles := BuildRevisionCycles(actions, []models.FeedbackRecord{question, answer, reply}, "")
	require.Len(t, cycles, 1)
	require.Len(t, cycles[0].Replies, 1)
	assert.Equal(t, "revision reply", cycles[0].Replies[0].Body)
}

func TestBuildRevisionCyclesLegacyFallback(t *testing.T) {
	cycles := BuildRevisionCycles(nil, nil, "we fixed the totals by hand")
	require.Len(t, cycles, 1)
	assert.True(t, cycles[0].Legacy)
	assert.Equal(t, LegacyRemarkPlaceholder, cycles[0].RootBody)
	require.Len(t, cycles[0].Replies, 1)
	assert.Equal(t, "we fixed the totals by hand", cycles[0].Replies[0].Body)
}

func TestBuildRevisionCyclesLegacyIgnoredWithHistory(t *testing.T) {
	// Any structured history wins over the legacy free-text remnant.
	actions := []models.ReviewAction{{ID: uuid.New(), Kind: models.ActionClaim, CreatedAt: threaderBase}}
	assert.Nil(t, BuildRevisionCycles(actions, nil, "legacy text"))

	records := []models.FeedbackRecord{replyAt(5, nil, models.FeedbackQuestion, "q")}
	assert.Nil(t, BuildRevisionCycles(nil, records, "legacy text"))
}

func TestBuildRevisionCyclesEmpty(t *testing.T) {
	assert.Nil(t, BuildRevisionCycles(nil, nil, ""))
}

func TestCyclePage(t *testing.T) {
	cycles := BuildRevisionCycles([]models.ReviewAction{
		requestAt(10, "first"),
		requestAt(20, "second"),
	}, nil, "")

	cycle, total := CyclePage(cycles, 1)
	require.NotNil(t, cycle)
	assert.Equal(t, 2, total)
	assert.Equal(t, "first", cycle.RootBody)

	cycle, total = CyclePage(cycles, 2)
	require.NotNil(t, cycle)
	assert.Equal(t, "second", cycle.RootBody)

	cycle, total = CyclePage(cycles, 3)
	assert.Nil(t, cycle)
	assert.Equal(t, 2, total)

	cycle, _ = CyclePage(cycles, 0)
	assert.Nil(t, cycle)
}
