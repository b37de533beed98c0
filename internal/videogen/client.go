package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/models"
)

const (
	createTaskPath = "/api/v1/jobs/createTask"
	recordInfoPath = "/api/v1/jobs/recordInfo"
	creditPath     = "/api/v1/chat/credit"
)

// Client drives image-to-video jobs on the kie.ai jobs API: one createTask
// call followed by a bounded recordInfo poll.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
	log          *slog.Logger
}

type Request struct {
	ImageURL    string
	Prompt      string
	Duration    int
	AspectRatio string
}

type Result struct {
	TaskID   string
	VideoURL string
	Attempts int
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := cfg.VideoPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := cfg.VideoPollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		apiKey:       cfg.KIEAPIKey,
		baseURL:      strings.TrimRight(cfg.KIEBaseURL, "/"),
		model:        cfg.KIEVideoModel,
		pollInterval: interval,
		maxAttempts:  attempts,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate submits the job and blocks until it completes, fails, exhausts
// the attempt budget or ctx is done.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("image url cannot be empty")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	input := map[string]any{
		"prompt":    req.Prompt,
		"image_url": req.ImageURL,
	}
	if req.Duration > 0 {
		input["duration"] = strconv.Itoa(req.Duration)
	}
	if req.AspectRatio != "" {
		input["aspect_ratio"] = req.AspectRatio
	}

	taskID, err := c.createTask(ctx, map[string]any{
		"model": c.model,
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return c.pollTaskStatus(ctx, taskID)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) createTask(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	c.log.Info("creating video task", "model", c.model)

	env, err := c.do(ctx, http.MethodPost, createTaskPath, nil, body)
	if err != nil {
		return "", err
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode create task data: %w", err)
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("empty taskId in response")
	}

	c.log.Info("video task created", "task_id", data.TaskID, "state", models.JobStateSubmitted)
	return data.TaskID, nil
}

type recordInfo struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

func (c *Client) pollTaskStatus(ctx context.Context, taskID string) (*Result, error) {
	params := url.Values{}
	params.Set("taskId", taskID)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		env, err := c.do(ctx, http.MethodGet, recordInfoPath, params, nil)
		if err != nil {
			return nil, fmt.Errorf("get task status: %w", err)
		}

		var info recordInfo
		if err := json.Unmarshal(env.Data, &info); err != nil {
			return nil, fmt.Errorf("decode status data: %w", err)
		}

		switch info.State {
		case "success":
			videoURL, err := firstResultURL(info.ResultJSON)
			if err != nil {
				return nil, &JobError{TaskID: taskID, State: models.JobStateFailed, Message: err.Error(), Attempts: attempt}
			}
			c.log.Info("video task completed", "task_id", taskID, "attempt", attempt)
			return &Result{TaskID: taskID, VideoURL: videoURL, Attempts: attempt}, nil

		case "fail":
			msg := info.FailMsg
			if msg == "" {
				msg = "unknown error"
			}
			c.log.Error("video task failed", "task_id", taskID, "fail_code", info.FailCode, "fail_msg", msg)
			return nil, &JobError{TaskID: taskID, State: models.JobStateFailed, FailCode: info.FailCode, Message: msg, Attempts: attempt}

		case "waiting", "queuing", "queued", "generating", "processing", "":
			if attempt%10 == 1 {
				c.log.Info("video task polling", "task_id", taskID, "state", info.State, "attempt", attempt, "max_attempts", c.maxAttempts)
			}

		default:
			c.log.Error("video task in unknown state", "task_id", taskID, "state", info.State)
			return nil, &JobError{TaskID: taskID, State: models.JobStateFailed, Message: "unknown task state: " + info.State, Attempts: attempt}
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	c.log.Warn("video task timed out", "task_id", taskID, "max_attempts", c.maxAttempts)
	return nil, &JobError{TaskID: taskID, State: models.JobStateTimedOut, Attempts: c.maxAttempts}
}

// RemainingCredits asks the provider for the account balance; it doubles as
// an API key check.
func (c *Client) RemainingCredits(ctx context.Context) (float64, error) {
	env, err := c.do(ctx, http.MethodGet, creditPath, nil, nil)
	if err != nil {
		return 0, err
	}
	var credits float64
	if err := json.Unmarshal(env.Data, &credits); err != nil {
		return 0, fmt.Errorf("decode credit data: %w", err)
	}
	return credits, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*envelope, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		c.log.Error("video provider request failed", "status", resp.StatusCode, "path", path, "body", truncateBody(rawBody))
		return nil, &ProviderError{Status: resp.StatusCode, Detail: providerDetail(rawBody)}
	}

	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if env.Code != http.StatusOK {
		return nil, &ProviderError{Code: env.Code, Detail: env.Msg}
	}
	return &env, nil
}

func firstResultURL(resultJSON string) (string, error) {
	if resultJSON == "" {
		return "", fmt.Errorf("empty resultJson in success response")
	}
	var result struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", fmt.Errorf("parse resultJson: %w", err)
	}
	for _, u := range result.ResultURLs {
		if strings.TrimSpace(u) != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("no resultUrls in result")
}

// providerDetail prefers the provider's own message over the raw body.
func providerDetail(body []byte) string {
	var env struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Msg != "" {
			return env.Msg
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return truncateBody(body)
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
