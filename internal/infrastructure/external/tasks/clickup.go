package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

const clickUpDefaultBaseURL = "https://api.clickup.com/api/v2"

// ClickUpProvider creates ClickUp tasks in one list and comments on them as reminders
type ClickUpProvider struct {
	token   string
	listID  string
	baseURL string
	client  *http.Client
}

var (
	_ providers.TaskProvider = (*ClickUpProvider)(nil)
	_ providers.Reminder     = (*ClickUpProvider)(nil)
)

// NewClickUpProvider creates a ClickUp provider from the tasks config
func NewClickUpProvider(cfg *config.TasksConfig) *ClickUpProvider {
	base := cfg.ClickUpBaseURL
	if base == "" {
		base = clickUpDefaultBaseURL
	}
	return &ClickUpProvider{
		token:   cfg.ClickUpToken,
		listID:  cfg.ClickUpListID,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *ClickUpProvider) Name() string { return "clickup" }

func (p *ClickUpProvider) Configured() bool {
	return p.token != "" && p.listID != ""
}

type clickUpTaskRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DueDate     int64    `json:"due_date,omitempty"`
	DueDateTime bool     `json:"due_date_time"`
	Tags        []string `json:"tags,omitempty"`
}

type clickUpTaskResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (p *ClickUpProvider) CreateTask(ctx context.Context, action *entities.ActionItem) (string, error) {
	body := clickUpTaskRequest{
		Name:        action.Title,
		Description: fmt.Sprintf("%s\n\nOwner: %s\nMeeting: %s", action.Description, action.Owner, action.MeetingID),
		Tags:        []string{"meeting-colleague"},
	}
	if action.DueDate != nil {
		body.DueDate = action.DueDate.UnixMilli()
	}

	var resp clickUpTaskResponse
	url := fmt.Sprintf("%s/list/%s/task", p.baseURL, p.listID)
	if err := postJSON(ctx, p.client, p.Name(), url, p.headers(), body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" && resp.ID != "" {
		resp.URL = "https://app.clickup.com/t/" + resp.ID
	}
	return resp.URL, nil
}

// SendReminder comments on the task created for the action
func (p *ClickUpProvider) SendReminder(ctx context.Context, action *entities.ActionItem) error {
	link, ok := action.Link(p.Name())
	if !ok {
		return nil
	}
	taskID := link[strings.LastIndex(link, "/")+1:]
	if taskID == "" {
		return errors.New("clickup: cannot derive task id from " + link)
	}

	due := "soon"
	if action.DueDate != nil {
		due = action.DueDate.Format("2006-01-02")
	}
	body := map[string]any{
		"comment_text": fmt.Sprintf("Reminder for %s: %q was due %s and is still open.", action.Owner, action.Title, due),
		"notify_all":   true,
	}
	url := fmt.Sprintf("%s/task/%s/comment", p.baseURL, taskID)
	return postJSON(ctx, p.client, p.Name(), url, p.headers(), body, nil)
}

func (p *ClickUpProvider) headers() map[string]string {
	return map[string]string{"Authorization": p.token}
}
