package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.TextGenConfig{
		Endpoint: srv.URL + "/",
		APIKey:   "secret",
		Timeout:  5 * time.Second,
	})
}

func TestGenerateBrief(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/briefings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req BriefRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, entities.BriefTypePre, req.Variant)
		assert.Equal(t, int64(3), req.OpenActions)

		_, _ = w.Write([]byte(`{"subject":"Inför styrgruppen","headline":"Tre öppna punkter","keyPoints":["budget"],"content":"..."}`))
	})

	brief, err := client.GenerateBrief(context.Background(), BriefRequest{
		Variant:     entities.BriefTypePre,
		MeetingID:   "m-1",
		Title:       "Styrgrupp",
		OpenActions: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Inför styrgruppen", brief.Subject)
	assert.Equal(t, []string{"budget"}, brief.KeyPoints)
}

func TestFencedResponseIsUnwrapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("```json\n{\"executiveSummary\":\"Servern köps\",\"decisions\":[\"köp server\"]}\n```"))
	})

	summary, err := client.Summarize(context.Background(), SummaryRequest{MeetingID: "m-1", Transcript: "..."})
	require.NoError(t, err)
	assert.Equal(t, "Servern köps", summary.ExecutiveSummary)
	assert.Equal(t, []string{"köp server"}, summary.Decisions)
}

func TestNon2xxIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.AnalyzeStakeholders(context.Background(), StakeholderRequest{MeetingID: "m-1"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, "/stakeholders/analyze", statusErr.Path)
	assert.Equal(t, "model overloaded", statusErr.Body)
}

func TestRegulationChanges(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/regwatch/changes", r.URL.Path)
		_, _ = w.Write([]byte(`{"changes":[{"source":"EUR-Lex","title":"AI Act","summary":"Nya krav"}]}`))
	})

	changes, err := client.RegulationChanges(context.Background(), RegulationRequest{MeetingID: "m-1", Topics: []string{"AI"}})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "AI Act", changes[0].Title)
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient(nil)
	assert.False(t, client.Configured())

	_, err := client.GenerateBrief(context.Background(), BriefRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractJSON(tt.in))
	}
}
