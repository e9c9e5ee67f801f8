package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
	"github.com/johnquangdev/meeting-colleague/pkg/signing"
)

func testAction() *entities.ActionItem {
	due := time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC)
	return &entities.ActionItem{
		ID:          "a-1",
		MeetingID:   "m-1",
		Title:       "Jag tar ansvar för uppföljningen",
		Description: "Jag tar ansvar för uppföljningen innan 5 december",
		Owner:       "Alice",
		DueDate:     &due,
		Status:      entities.ActionStatusOpen,
	}
}

func TestClickUpCreateTaskAndRemind(t *testing.T) {
	var comments atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/list/list-9/task":
			var body clickUpTaskRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Jag tar ansvar för uppföljningen", body.Name)
			assert.Equal(t, time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC).UnixMilli(), body.DueDate)
			_, _ = w.Write([]byte(`{"id":"86abc","url":"https://app.clickup.com/t/86abc"}`))
		case "/task/86abc/comment":
			comments.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewClickUpProvider(&config.TasksConfig{ClickUpToken: "pk_token", ClickUpListID: "list-9", ClickUpBaseURL: srv.URL})
	require.True(t, p.Configured())

	action := testAction()
	url, err := p.CreateTask(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "https://app.clickup.com/t/86abc", url)

	action.AddLink(p.Name(), url)
	require.NoError(t, p.SendReminder(context.Background(), action))
	assert.Equal(t, int32(1), comments.Load())
}

func TestClickUpNotConfigured(t *testing.T) {
	p := NewClickUpProvider(&config.TasksConfig{ClickUpToken: "pk_token"})
	assert.False(t, p.Configured())
}

func TestWebhookProviderSignsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, signing.Verify("hook-secret", body, r.Header.Get(SignatureHeader)))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://tracker.example.com/tasks/17"}`))
	}))
	defer srv.Close()

	p := NewWebhookProvider(&config.TasksConfig{WebhookURL: srv.URL, WebhookSecret: "hook-secret"})
	url, err := p.CreateTask(context.Background(), testAction())
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example.com/tasks/17", url)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookProviderClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWebhookProvider(&config.TasksConfig{WebhookURL: srv.URL})
	_, err := p.CreateTask(context.Background(), testAction())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPostJSONTransportErrors(t *testing.T) {
	t.Run("certificate failure is not retried", func(t *testing.T) {
		var calls atomic.Int32
		client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("x509: certificate signed by unknown authority")
		})}

		err := postJSON(context.Background(), client, "webhook", "https://tracker.test/tasks", nil, map[string]string{"a": "b"}, nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("connection reset is retried", func(t *testing.T) {
		var calls atomic.Int32
		client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("read: connection reset by peer")
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"url":"https://tracker.test/t/1"}`)),
				Header:     make(http.Header),
				Request:    r,
			}, nil
		})}

		var out struct {
			URL string `json:"url"`
		}
		err := postJSON(context.Background(), client, "webhook", "https://tracker.test/tasks", nil, map[string]string{"a": "b"}, &out)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, "https://tracker.test/t/1", out.URL)
	})
}

func TestRegistryFallsBackToNoop(t *testing.T) {
	r := FromConfig(&config.TasksConfig{}, nil)
	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "noop", active[0].Name())

	url, err := active[0].CreateTask(context.Background(), testAction())
	require.NoError(t, err)
	assert.Empty(t, url)

	r = FromConfig(&config.TasksConfig{WebhookURL: "http://localhost:1", ClickUpToken: "t", ClickUpListID: "l"}, nil)
	names := []string{}
	for _, p := range r.Active() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"clickup", "webhook"}, names)
}
