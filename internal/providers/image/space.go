package image

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// SpaceOptions configures the fallback backend client.
type SpaceOptions struct {
	APIToken   string
	Space      string
	HubBaseURL string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
}

// SpaceClient drives a Hugging Face Gradio Space: resolve the dynamic
// execution host, submit the job over the event-based call API, follow the
// event stream until a completion or error event, then download the produced
// asset from its signed URL.
type SpaceClient struct {
	apiToken   string
	space      string
	hubBaseURL string
	httpClient *http.Client
	logger     infra.Logger
	timeout    time.Duration
}

// NewSpaceClient constructs a client with sane defaults.
func NewSpaceClient(opts SpaceOptions) *SpaceClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No overall client timeout: the event stream stays open for the whole
		// generation, and every request already runs under the Generate
		// context carrying the configured time budget.
		httpClient = &http.Client{}
	}
	hubBaseURL := strings.TrimRight(opts.HubBaseURL, "/")
	if hubBaseURL == "" {
		hubBaseURL = "https://huggingface.co"
	}
	space := strings.TrimSpace(opts.Space)
	if space == "" {
		space = "black-forest-labs/FLUX.1-Kontext-Dev"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &SpaceClient{
		apiToken:   strings.TrimSpace(opts.APIToken),
		space:      space,
		hubBaseURL: hubBaseURL,
		httpClient: httpClient,
		logger:     logger,
		timeout:    timeout,
	}
}

// Name identifies the backend.
func (c *SpaceClient) Name() string { return "hf-space" }

// Available reports whether an API token is configured.
func (c *SpaceClient) Available() bool { return c.apiToken != "" }

// Generate runs one inference call against the Space within the time budget.
func (c *SpaceClient) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: hf-space: api token not configured", domain.ErrProviderFailure)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	host, err := c.resolveHost(ctx)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}
	c.logger.Debug().Str("space", c.space).Str("host", host).Msg("hf-space: resolved execution host")

	eventID, err := c.submit(ctx, host, params)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}

	assetURL, err := c.awaitResult(ctx, host, eventID)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}

	data, contentType, err := downloadAsset(ctx, c.httpClient, c.Name(), assetURL)
	if err != nil {
		return nil, err
	}
	return &Result{Image: data, ContentType: contentType}, nil
}

// resolveHost asks the hub for the Space's current execution host.
func (c *SpaceClient) resolveHost(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/api/spaces/%s/host", c.hubBaseURL, c.space)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build host request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode host response: %w", err)
	}
	if decoded.Host == "" {
		return "", fmt.Errorf("space host unavailable")
	}
	host := decoded.Host
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/"), nil
}

// submit posts the inference call and returns the event id to follow.
func (c *SpaceClient) submit(ctx context.Context, host string, params GenerateParams) (string, error) {
	seed := params.Seed
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"url":  dataURL(params.InputImage, params.InputContentType),
				"meta": map[string]any{"_type": "gradio.FileData"},
			},
			params.Prompt,
			seed,
			seed == 0, // randomize_seed
			params.GuidanceScale,
			params.Steps,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/gradio_api/call/infer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read call response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", classifyStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if decoded.EventID == "" {
		return "", fmt.Errorf("missing event id")
	}
	return decoded.EventID, nil
}

// awaitResult follows the server-sent event stream for the call until a
// complete or error event arrives, returning the produced asset URL.
func (c *SpaceClient) awaitResult(ctx context.Context, host, eventID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/gradio_api/call/infer/"+eventID, nil)
	if err != nil {
		return "", fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	event := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				return extractFileURL(data)
			case "error":
				msg := data
				if msg == "" || msg == "null" {
					msg = "space reported an error"
				}
				return "", classifyMessage(c.Name(), msg)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("event stream ended without completion")
}

// extractFileURL pulls the asset URL out of a complete-event payload, a JSON
// array whose first element is a gradio file descriptor.
func extractFileURL(data string) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", fmt.Errorf("decode completion payload: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty completion payload")
	}
	var file struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(payload[0], &file); err != nil {
		return "", fmt.Errorf("decode file descriptor: %w", err)
	}
	if file.URL == "" {
		return "", fmt.Errorf("completion payload missing file url")
	}
	return file.URL, nil
}

var _ Generator = (*SpaceClient)(nil)
