package imaging

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/utils/safe"
)

const maxResponseSize = 32 << 20

// post sends body to endpoint and returns the response payload. Non-2xx answers are errors
// carrying the beginning of the body.
func post(ctx context.Context, client *http.Client, endpoint, token, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("endpoint", endpoint))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "request failed", goerr.V("endpoint", endpoint))
	}
	defer safe.Drain(ctx, resp.Body)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response", goerr.V("endpoint", endpoint))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected status",
			goerr.V("endpoint", endpoint),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", excerpt(payload)),
		)
	}
	return payload, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
