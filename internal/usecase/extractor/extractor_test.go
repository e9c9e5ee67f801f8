package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/repository"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/eventbus"
	"github.com/johnquangdev/meeting-colleague/internal/testutil"
)

var spokenAt = time.Date(2026, 11, 20, 14, 5, 0, 0, time.UTC)

func segment(speaker, text string) entities.TranscriptSegment {
	return entities.TranscriptSegment{
		ID:         "seg-1",
		MeetingID:  "m-1",
		Speaker:    speaker,
		Text:       text,
		StartTime:  61.5,
		EndTime:    64,
		Confidence: 0.93,
		Language:   "sv",
	}
}

func TestExtractDecisionFromSwedish(t *testing.T) {
	svc := NewService(nil, nil, nil)

	results := svc.Extract(segment("Alice", "Vi beslutar att köpa den nya servern"), spokenAt)
	require.Len(t, results, 1)
	require.Equal(t, KindDecision, results[0].Kind)

	card := results[0].Decision
	assert.Contains(t, card.Headline, "server")
	assert.Equal(t, "Köpa den nya servern", card.Headline)
	assert.Equal(t, "Alice", card.Owner)
	assert.Equal(t, "m-1", card.MeetingID)
	assert.NotEmpty(t, card.Problem)
	assert.NotEmpty(t, card.Recommendation)
	assert.Contains(t, card.Consequences, "14 dagar")
	require.Len(t, card.Alternatives, 2)
	assert.Equal(t, "Alternativ A", card.Alternatives[0].Label)
	require.Len(t, card.Citations, 1)
	assert.Equal(t, "seg-1", card.Citations[0].SegmentID)
	assert.Equal(t, "Vi beslutar att köpa den nya servern", card.Citations[0].Excerpt)
	assert.Equal(t, spokenAt, card.DecidedAt)
}

func TestExtractDecisionClauses(t *testing.T) {
	svc := NewService(nil, nil, nil)
	seg := segment("Bob", "We decided to migrate to Postgres because the license expires in March. "+
		"Option A: migrate now, option B is to wait a quarter. "+
		"I recommend that we start with the reporting database. This means the old cluster is frozen.")
	seg.Language = "en-US"

	results := svc.Extract(seg, spokenAt)
	require.Len(t, results, 1)
	card := results[0].Decision

	assert.Equal(t, "Migrate to Postgres because the license expires in March", card.Headline)
	assert.Equal(t, "The license expires in March", card.Problem)
	assert.Equal(t, []entities.Alternative{
		{Label: "Option A", Description: "Migrate now"},
		{Label: "Option B", Description: "To wait a quarter"},
	}, []entities.Alternative(card.Alternatives))
	assert.Equal(t, "We start with the reporting database", card.Recommendation)
	assert.Equal(t, "The old cluster is frozen", card.Consequences)
}

func TestExtractHeadlineFallsBackToText(t *testing.T) {
	svc := NewService(nil, nil, nil)
	text := "okej, då är det beslutat, vi kör."

	results := svc.Extract(segment("Alice", text), spokenAt)
	require.Len(t, results, 1)
	assert.Equal(t, "Okej, då är det beslutat, vi kör.", results[0].Decision.Headline)
}

func TestExtractDecisionIDIsStable(t *testing.T) {
	svc := NewService(nil, nil, nil)
	seg := segment("Alice", "Vi beslutar att köpa den nya servern")

	first := svc.Extract(seg, spokenAt)[0].Decision
	second := svc.Extract(seg, spokenAt.Add(time.Hour))[0].Decision
	assert.Equal(t, first.ID, second.ID)

	seg.ID = "seg-2"
	third := svc.Extract(seg, spokenAt)[0].Decision
	assert.NotEqual(t, first.ID, third.ID)
}

func TestExtractCommitment(t *testing.T) {
	svc := NewService(nil, nil, nil)

	results := svc.Extract(segment("Alice", "Jag tar ansvar för uppföljningen innan 5 december"), spokenAt)
	require.Len(t, results, 1)
	require.Equal(t, KindCommitment, results[0].Kind)

	c := results[0].Commitment
	assert.Equal(t, "Alice", c.Owner)
	assert.Equal(t, "Jag tar ansvar för uppföljningen innan 5 december", c.Statement)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, time.December, c.DueDate.Month())
	assert.Equal(t, time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC), *c.DueDate)
}

func TestExtractNothing(t *testing.T) {
	svc := NewService(nil, nil, nil)

	assert.Empty(t, svc.Extract(segment("Alice", "Hur var helgen?"), spokenAt))
	assert.Empty(t, svc.Extract(segment("Alice", "   "), spokenAt))

	redacted := segment("Alice", "Vi beslutar att köpa den nya servern")
	redacted.Redacted = true
	assert.Empty(t, svc.Extract(redacted, spokenAt))
}

func TestExtractBothKinds(t *testing.T) {
	svc := NewService(nil, nil, nil)

	results := svc.Extract(segment("Carl", "Vi beslutar att byta leverantör och jag tar kontakten med dem"), spokenAt)
	require.Len(t, results, 2)
	assert.Equal(t, KindDecision, results[0].Kind)
	assert.Equal(t, KindCommitment, results[1].Kind)
	assert.Nil(t, results[1].Commitment.DueDate)
}

func TestParseDueDate(t *testing.T) {
	ref := time.Date(2026, 11, 20, 9, 0, 0, 0, time.UTC)
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		text string
		want *time.Time
	}{
		{"innan 5 december", date(2026, 12, 5)},
		{"klart till den 12 mars", date(2027, 3, 12)},
		{"senast 20 november", date(2026, 11, 20)},
		{"by the 3rd of January", date(2027, 1, 3)},
		{"before December 1st", date(2026, 12, 1)},
		{"innan 31 februari", nil},
		{"innan 5 smörgås", nil},
		{"innan jul", nil},
		{"ingen deadline", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDueDate(tt.text, ref))
		})
	}
}

func TestHandleSegmentPublishesAndPersists(t *testing.T) {
	ctx := context.Background()
	decisions := repository.NewDecisionRepository(testutil.NewSQLiteDB(t))
	bus := eventbus.New(eventbus.Options{})
	defer bus.Close()

	svc := NewService(decisions, bus, nil)
	bus.Subscribe(entities.EventSpeechSegment, svc.HandleSegment)

	var got []entities.MeetingEvent
	collect := func(ctx context.Context, e entities.MeetingEvent) error {
		got = append(got, e)
		return nil
	}
	bus.Subscribe(entities.EventDecisionFinalized, collect)
	bus.Subscribe(entities.EventCommitment, collect)

	decision := entities.NewMeetingEvent("m-1", segment("Alice", "Vi beslutar att köpa den nya servern"), spokenAt)
	require.NoError(t, bus.Publish(ctx, decision))
	require.NoError(t, bus.Publish(ctx, decision))

	commitment := segment("Alice", "Jag tar ansvar för uppföljningen innan 5 december")
	commitment.ID = "seg-2"
	require.NoError(t, bus.Publish(ctx, entities.NewMeetingEvent("m-1", commitment, spokenAt)))

	require.Len(t, got, 3)
	assert.Equal(t, entities.EventDecisionFinalized, got[0].Type)
	assert.Equal(t, decision.ID, got[0].CorrelationID)
	assert.Equal(t, entities.EventCommitment, got[2].Type)
	assert.Equal(t, "Alice", got[2].Payload.(entities.Commitment).Owner)

	cards, err := decisions.ListByMeeting(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Alice", cards[0].Owner)
}
