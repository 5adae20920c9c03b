package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.replicate.com/v1"

var (
	ErrPredictionFailed = errors.New("prediction failed")
	ErrPollTimeout      = errors.New("prediction did not finish in time")
)

type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger

	pollAttempts int
	pollBase     time.Duration
	pollStep     time.Duration
	pollMax      time.Duration
	retryDelays  []time.Duration
	maxDownload  int64
}

type Option func(*Client)

// WithPolling sets the poll bound: attempt i waits base + i*step, capped at max.
func WithPolling(attempts int, base, step, max time.Duration) Option {
	return func(c *Client) {
		c.pollAttempts = attempts
		c.pollBase = base
		c.pollStep = step
		c.pollMax = max
	}
}

func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Client) { c.retryDelays = delays }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL, apiToken string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       zap.NewNop(),
		pollAttempts: 60,
		pollBase:     time.Second,
		pollStep:     500 * time.Millisecond,
		pollMax:      10 * time.Second,
		retryDelays:  []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		maxDownload:  50 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type modelResponse struct {
	LatestVersion *struct {
		ID string `json:"id"`
	} `json:"latest_version"`
}

type predictionRequest struct {
	Version string                 `json:"version"`
	Input   map[string]interface{} `json:"input"`
}

type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"` // starting, processing, succeeded, failed, canceled
	Output json.RawMessage `json:"output"`
	Error  interface{}     `json:"error"`
	Logs   string          `json:"logs"`
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("replicate api status %d: %s", e.status, e.body)
}

// retryable reports whether a request may succeed if repeated.
func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{status: resp.StatusCode, body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ResolveVersion maps "owner/name" to the model's latest version id. Anything
// without a slash is taken to be a version id already. Official models publish
// no versions; for those it returns "" and predictions go to the model endpoint.
func (c *Client) ResolveVersion(ctx context.Context, model string) (string, error) {
	if !strings.Contains(model, "/") {
		return model, nil
	}
	if i := strings.IndexByte(model, ':'); i >= 0 {
		return model[i+1:], nil
	}

	var m modelResponse
	if err := c.do(ctx, http.MethodGet, "/models/"+model, nil, &m); err != nil {
		return "", fmt.Errorf("failed to fetch model %s: %w", model, err)
	}
	if m.LatestVersion == nil {
		return "", nil
	}
	return m.LatestVersion.ID, nil
}

// CreatePrediction starts a prediction for model, pinned to version when one is given.
func (c *Client) CreatePrediction(ctx context.Context, model, version string, input map[string]interface{}) (*Prediction, error) {
	path := "/predictions"
	var body interface{} = predictionRequest{Version: version, Input: input}
	if version == "" {
		path = "/models/" + strings.SplitN(model, ":", 2)[0] + "/predictions"
		body = map[string]interface{}{"input": input}
	}

	var p Prediction
	err := c.RetryWithBackoff(ctx, func() error {
		return c.do(ctx, http.MethodPost, path, body, &p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	return &p, nil
}

func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	var p Prediction
	if err := c.do(ctx, http.MethodGet, "/predictions/"+id, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to get prediction %s: %w", id, err)
	}
	return &p, nil
}

func (c *Client) pollDelay(attempt int) time.Duration {
	d := c.pollBase + time.Duration(attempt)*c.pollStep
	if c.pollMax > 0 && d > c.pollMax {
		return c.pollMax
	}
	return d
}

// Wait polls until the prediction reaches a terminal state or the attempt bound
// is exhausted.
func (c *Client) Wait(ctx context.Context, p *Prediction) (*Prediction, error) {
	current := p
	for attempt := 0; ; attempt++ {
		switch current.Status {
		case "succeeded":
			return current, nil
		case "failed", "canceled":
			return nil, fmt.Errorf("%w: %s: %v", ErrPredictionFailed, current.Status, current.Error)
		}
		if attempt >= c.pollAttempts {
			return nil, fmt.Errorf("%w: %s after %d polls", ErrPollTimeout, current.ID, attempt)
		}

		if err := sleep(ctx, c.pollDelay(attempt)); err != nil {
			return nil, err
		}

		next, err := c.GetPrediction(ctx, current.ID)
		if err != nil {
			if retryable(err) {
				c.logger.Warn("prediction poll failed", zap.String("prediction_id", current.ID), zap.Error(err))
				continue
			}
			return nil, err
		}
		current = next
	}
}

// Run creates a prediction and waits for its decoded output.
func (c *Client) Run(ctx context.Context, model string, input map[string]interface{}) (Output, error) {
	version, err := c.ResolveVersion(ctx, model)
	if err != nil {
		return Output{}, err
	}

	p, err := c.CreatePrediction(ctx, model, version, input)
	if err != nil {
		return Output{}, err
	}
	c.logger.Info("prediction created", zap.String("prediction_id", p.ID), zap.String("model", model))

	done, err := c.Wait(ctx, p)
	if err != nil {
		return Output{}, err
	}
	return DecodeOutput(done.Output)
}

// Fetch downloads a result URL. Replicate delivery URLs need no credentials.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download output: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("output exceeds %d bytes", c.maxDownload)
	}
	return data, nil
}

// Invoke runs an image-to-image model on sourceURL and returns the result bytes.
func (c *Client) Invoke(ctx context.Context, model, prompt, sourceURL string) ([]byte, error) {
	out, err := c.Run(ctx, model, map[string]interface{}{
		"prompt":      prompt,
		"image_input": []string{sourceURL},
	})
	if err != nil {
		return nil, err
	}
	return Normalize(ctx, out, c)
}

// RetryWithBackoff runs fn until it succeeds, fails permanently, or the retry
// delays are used up.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i <= len(c.retryDelays); i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if i == len(c.retryDelays) {
			break
		}
		if err := sleep(ctx, c.retryDelays[i]); err != nil {
			return err
		}
	}

	return fmt.Errorf("failed after %d retries: %w", len(c.retryDelays), lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
