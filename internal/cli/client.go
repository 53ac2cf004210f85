package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ParameterResponse — параметр плана.
type ParameterResponse struct {
	Name     string   `json:"name"`
	Title    string   `json:"title,omitempty"`
	Type     string   `json:"type"`
	Default  any      `json:"default,omitempty"`
	Required bool     `json:"required,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

// PlanResponse — план из API.
type PlanResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Source      string              `json:"source"`
	Parameters  []ParameterResponse `json:"parameters,omitempty"`
}

// SubmitResponse — результат постановки в очередь.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Plan         string `json:"plan"`
}

// PendingResponse — submission в очереди.
type PendingResponse struct {
	ID          string         `json:"id"`
	Plan        string         `json:"plan"`
	Priority    int            `json:"priority"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SubmittedAt string         `json:"submitted_at"`
}

// EngineResponse — состояние движка из API.
type EngineResponse struct {
	State      string            `json:"state"`
	Pending    int               `json:"pending"`
	Unfinished int               `json:"unfinished"`
	Idle       bool              `json:"idle"`
	Queue      []PendingResponse `json:"queue"`
}

// RunResponse — run из API.
type RunResponse struct {
	UID         string         `json:"uid"`
	ScanID      int            `json:"scan_id"`
	PlanName    string         `json:"plan_name"`
	Status      string         `json:"status"`
	ExitStatus  string         `json:"exit_status,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	NumEvents   map[string]int `json:"num_events,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   string         `json:"started_at"`
	FinishedAt  string         `json:"finished_at,omitempty"`
	DurationSec float64        `json:"duration_sec,omitempty"`
}

// DocumentResponse — lifecycle документ из API.
type DocumentResponse struct {
	Name string         `json:"name"`
	Body map[string]any `json:"body"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	Name             string         `json:"name"`
	Plan             string         `json:"plan"`
	CronExpr         string         `json:"cron_expr,omitempty"`
	IntervalSec      int            `json:"interval_sec,omitempty"`
	Timezone         string         `json:"timezone,omitempty"`
	Enabled          bool           `json:"enabled"`
	Priority         int            `json:"priority,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	NextDueAt        string         `json:"next_due_at,omitempty"`
	LastRunAt        string         `json:"last_run_at,omitempty"`
	LastSubmissionID string         `json:"last_submission_id,omitempty"`
}

// Notification — одно уведомление из потока /api/v1/events.
type Notification struct {
	Kind string
	Data map[string]any
}

// --- Request types ---

// SubmitRequest — постановка плана в очередь.
type SubmitRequest struct {
	Priority   *int           `json:"priority,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ControlRequest — pause/abort/stop.
type ControlRequest struct {
	Defer  bool   `json:"defer,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Plan   string
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Acquire API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Plans ---

// ListPlans возвращает планы библиотеки.
func (c *Client) ListPlans() ([]PlanResponse, error) {
	var plans []PlanResponse
	err := c.list("/api/v1/plans", nil, &plans)
	return plans, err
}

// GetPlan возвращает план по имени.
func (c *Client) GetPlan(name string) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.get("/api/v1/plans/"+url.PathEscape(name), &plan)
	return &plan, err
}

// SubmitPlan ставит план в очередь.
func (c *Client) SubmitPlan(name string, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	err := c.post("/api/v1/plans/"+url.PathEscape(name)+"/submit", req, &resp)
	return &resp, err
}

// --- Engine ---

// EngineStatus возвращает состояние движка и очередь.
func (c *Client) EngineStatus() (*EngineResponse, error) {
	var status EngineResponse
	err := c.get("/api/v1/engine", &status)
	return &status, err
}

// Pause запрашивает паузу.
func (c *Client) Pause(deferred bool) (*EngineResponse, error) {
	return c.control("pause", ControlRequest{Defer: deferred})
}

// Resume продолжает выполнение.
func (c *Client) Resume() (*EngineResponse, error) {
	return c.control("resume", ControlRequest{})
}

// Abort прерывает план.
func (c *Client) Abort(reason string) (*EngineResponse, error) {
	return c.control("abort", ControlRequest{Reason: reason})
}

// Stop завершает план штатно.
func (c *Client) Stop(reason string) (*EngineResponse, error) {
	return c.control("stop", ControlRequest{Reason: reason})
}

func (c *Client) control(action string, req ControlRequest) (*EngineResponse, error) {
	var status EngineResponse
	err := c.post("/api/v1/engine/"+action, req, &status)
	return &status, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Plan != "" {
		params.Set("plan", opts.Plan)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по uid.
func (c *Client) GetRun(uid string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(uid), &run)
	return &run, err
}

// ListDocuments возвращает документы run.
func (c *Client) ListDocuments(uid string) ([]DocumentResponse, error) {
	var docs []DocumentResponse
	err := c.list("/api/v1/runs/"+url.PathEscape(uid)+"/documents", nil, &docs)
	return docs, err
}

// --- Schedules ---

// ListSchedules возвращает schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// GetSchedule возвращает schedule по имени.
func (c *Client) GetSchedule(name string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+url.PathEscape(name), &schedule)
	return &schedule, err
}

// SetScheduleEnabled включает или выключает schedule.
func (c *Client) SetScheduleEnabled(name string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": enabled}
	err := c.put("/api/v1/schedules/"+url.PathEscape(name)+"/enabled", body, &schedule)
	return &schedule, err
}

// --- Notifications ---

// StreamEvents читает поток уведомлений до отмены ctx или закрытия
// соединения. kinds ограничивает виды уведомлений (пусто — все).
func (c *Client) StreamEvents(ctx context.Context, kinds []string, fn func(Notification)) error {
	path := "/api/v1/events"
	if len(kinds) > 0 {
		path += "?" + url.Values{"kinds": {strings.Join(kinds, ",")}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Поток бесконечный, общий таймаут клиента не подходит
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var kind string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err != nil {
				return fmt.Errorf("failed to decode notification: %w", err)
			}
			fn(Notification{Kind: kind, Data: data})
			kind = ""
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
