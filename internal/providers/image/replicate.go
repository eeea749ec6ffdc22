package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// ReplicateOptions configures the primary backend client.
type ReplicateOptions struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	Timeout      time.Duration
}

// ReplicateClient drives the create-then-poll prediction flow: submit a
// prediction, receive its id, poll until a terminal status or the time budget
// lapses, then download the output asset.
type ReplicateClient struct {
	apiToken     string
	baseURL      string
	httpClient   *http.Client
	logger       infra.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

type predictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

// NewReplicateClient constructs a client with sane defaults.
func NewReplicateClient(opts ReplicateOptions) *ReplicateClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &ReplicateClient{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Name identifies the backend.
func (c *ReplicateClient) Name() string { return "replicate" }

// Available reports whether an API token is configured.
func (c *ReplicateClient) Available() bool { return c.apiToken != "" }

// Generate runs one prediction to completion within the client's time budget.
func (c *ReplicateClient) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: replicate: api token not configured", domain.ErrProviderFailure)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pred, err := c.createPrediction(ctx, params)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}
	c.logger.Debug().Str("prediction_id", pred.ID).Str("model", params.Model).Msg("replicate: prediction created")

	final, err := c.waitForPrediction(ctx, pred)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}

	outputURL, err := firstOutputURL(final.Output)
	if err != nil {
		return nil, classifyError(c.Name(), err)
	}
	data, contentType, err := downloadAsset(ctx, c.httpClient, c.Name(), outputURL)
	if err != nil {
		return nil, err
	}
	return &Result{Image: data, ContentType: contentType}, nil
}

func (c *ReplicateClient) createPrediction(ctx context.Context, params GenerateParams) (*predictionResponse, error) {
	input := map[string]any{
		"prompt":              params.Prompt,
		"image":               dataURL(params.InputImage, params.InputContentType),
		"guidance_scale":      params.GuidanceScale,
		"num_inference_steps": params.Steps,
	}
	if params.NegativePrompt != "" {
		input["negative_prompt"] = params.NegativePrompt
	}
	if params.Strength > 0 {
		input["strength"] = params.Strength
	}
	if params.Seed > 0 {
		input["seed"] = params.Seed
	}
	if len(params.ControlImage) > 0 {
		input["control_image"] = dataURL(params.ControlImage, detectContentType(params.ControlImage))
		if params.ControlConditioningScale > 0 {
			input["controlnet_conditioning_scale"] = params.ControlConditioningScale
		}
	}
	for k, v := range params.Overrides {
		input[k] = v
	}

	payload := predictionRequest{Input: input}
	endpoint := c.baseURL + "/v1/predictions"
	if strings.Contains(params.Model, "/") {
		// owner/name models use the model-scoped endpoint; bare ids are
		// version hashes.
		endpoint = fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, params.Model)
	} else {
		payload.Version = params.Model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode prediction: %w", err)
	}
	return c.doPrediction(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
}

func (c *ReplicateClient) waitForPrediction(ctx context.Context, pred *predictionResponse) (*predictionResponse, error) {
	current := pred
	for {
		switch current.Status {
		case "succeeded":
			return current, nil
		case "failed", "canceled":
			msg := current.Error
			if msg == "" {
				msg = "prediction " + current.Status
			}
			return nil, classifyMessage(c.Name(), msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		next, err := c.doPrediction(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+current.ID, nil)
		if err != nil {
			return nil, err
		}
		current = next
	}
}

func (c *ReplicateClient) doPrediction(ctx context.Context, method, endpoint string, body io.Reader) (*predictionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var decoded predictionResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Detail != "" {
			return nil, classifyStatus(c.Name(), resp.StatusCode, decoded.Detail)
		}
		return nil, classifyStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded predictionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &decoded, nil
}

// firstOutputURL extracts the first asset URL from the prediction output,
// which is either a bare string or an array of strings.
func firstOutputURL(output json.RawMessage) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("empty prediction output")
	}
	var single string
	if err := json.Unmarshal(output, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("unrecognized prediction output")
}

func dataURL(data []byte, contentType string) string {
	if contentType == "" {
		contentType = detectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var _ Generator = (*ReplicateClient)(nil)
