package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Due is a Todoist due date. Datetime is set for timed tasks.
type Due struct {
	Date     string `json:"date"`
	Datetime string `json:"datetime,omitempty"`
	String   string `json:"string,omitempty"`
}

// Task is a Todoist task as returned by the API and carried in webhooks.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Due         *Due     `json:"due,omitempty"`
	Labels      []string `json:"labels"`
	ProjectID   string   `json:"project_id"`
	URL         string   `json:"url,omitempty"`
	Checked     bool     `json:"checked"`
	IsCompleted bool     `json:"is_completed"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// Completed reports the completion flag; older payloads use is_completed.
func (t Task) Completed() bool {
	return t.Checked || t.IsCompleted
}

// Link returns the task URL, falling back to the web app address.
func (t Task) Link() string {
	if t.URL != "" {
		return t.URL
	}
	return "https://todoist.com/showTask?id=" + url.QueryEscape(t.ID)
}

// DueDate returns the due date string, or "" when the task has none.
func (t Task) DueDate() string {
	if t.Due == nil {
		return ""
	}
	return t.Due.Date
}

// Project is a Todoist project.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	URL   string `json:"url,omitempty"`
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	ProjectID string
	Label     string
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	ProjectID   string   `json:"project_id,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// MapPriority converts Todoist priority (4 = urgent) to the local scale
// (1 = urgent). Unknown values map to 4.
func MapPriority(p int) int {
	switch p {
	case 1, 2, 3, 4:
		return 5 - p
	}
	return 4
}

// ListTasks returns the active tasks visible to the token, following pages.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	params := url.Values{}
	if f.ProjectID != "" {
		params.Set("project_id", f.ProjectID)
	}
	if f.Label != "" {
		params.Set("label", f.Label)
	}
	var tasks []Task
	if err := c.list(ctx, "/tasks", params, &tasks); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// ListProjects returns every project visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.list(ctx, "/projects", url.Values{}, &projects); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// CreateTask creates a task. Priority is on the Todoist scale and defaults to 4.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if req.Priority == 0 {
		req.Priority = 4
	}
	resp, err := c.do(ctx, http.MethodPost, "/tasks", req)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	var task Task
	if err := decodeResponse(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// page is the paginated envelope. Endpoints that return a bare array are
// handled too.
type page struct {
	Results    json.RawMessage `json:"results"`
	NextCursor *string         `json:"next_cursor"`
}

const maxPages = 100

func (c *Client) list(ctx context.Context, path string, params url.Values, out any) error {
	var all []json.RawMessage
	for i := 0; i < maxPages; i++ {
		p := path
		if len(params) > 0 {
			p += "?" + params.Encode()
		}
		resp, err := c.do(ctx, http.MethodGet, p, nil)
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := decodeResponse(resp, &raw); err != nil {
			return err
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			return json.Unmarshal(raw, out)
		}

		var pg page
		if err := json.Unmarshal(raw, &pg); err != nil {
			return fmt.Errorf("decoding page: %w", err)
		}
		var items []json.RawMessage
		if len(pg.Results) > 0 {
			if err := json.Unmarshal(pg.Results, &items); err != nil {
				return fmt.Errorf("decoding page results: %w", err)
			}
		}
		all = append(all, items...)

		if pg.NextCursor == nil || *pg.NextCursor == "" {
			break
		}
		params.Set("cursor", *pg.NextCursor)
	}

	if all == nil {
		all = []json.RawMessage{}
	}
	merged, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}
