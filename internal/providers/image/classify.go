package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"server/internal/domain"
)

// classifyError maps a backend failure onto the provider error taxonomy:
// timeout, capacity/busy, licensing/permission, or generic upstream failure.
func classifyError(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrProviderTimeout) ||
		errors.Is(err, domain.ErrProviderBusy) ||
		errors.Is(err, domain.ErrProviderPermissionDenied) ||
		errors.Is(err, domain.ErrProviderFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: generation timed out, please retry", domain.ErrProviderTimeout, backend)
	}
	return classifyMessage(backend, err.Error())
}

func classifyMessage(backend, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "abort"):
		return fmt.Errorf("%w: %s: %s", domain.ErrProviderTimeout, backend, msg)
	case strings.Contains(lower, "queue") || strings.Contains(lower, "busy") || strings.Contains(lower, "capacity"):
		return fmt.Errorf("%w: %s: %s", domain.ErrProviderBusy, backend, msg)
	case strings.Contains(lower, "license") || strings.Contains(lower, "gated") || strings.Contains(lower, "accept"):
		return fmt.Errorf("%w: %s: %s", domain.ErrProviderPermissionDenied, backend, msg)
	default:
		return fmt.Errorf("%w: %s: %s", domain.ErrProviderFailure, backend, msg)
	}
}

func classifyStatus(backend string, statusCode int, body string) error {
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrProviderBusy, backend, statusCode, body)
	case statusCode == http.StatusForbidden || statusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrProviderPermissionDenied, backend, statusCode, body)
	case statusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrProviderTimeout, backend, statusCode, body)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrProviderFailure, backend, statusCode, body)
	}
}

// detectContentType sniffs the image format from magic bytes, falling back to
// PNG.
func detectContentType(data []byte) string {
	if len(data) < 2 {
		return "image/png"
	}
	switch {
	case data[0] == 0xff && data[1] == 0xd8:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50:
		return "image/png"
	case data[0] == 0x52 && data[1] == 0x49:
		return "image/webp"
	case data[0] == 0x47 && data[1] == 0x49:
		return "image/gif"
	default:
		return "image/png"
	}
}

// downloadAsset fetches the produced image from the URL a backend returned.
func downloadAsset(ctx context.Context, client *http.Client, backend, assetURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: build download request: %v", domain.ErrProviderFailure, backend, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", classifyError(backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", classifyStatus(backend, resp.StatusCode, "asset download failed")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: read asset: %v", domain.ErrProviderFailure, backend, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(data)
	}
	return data, contentType, nil
}
