package retrieval

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/utils/safe"
)

const (
	maxBodySize      = 1 << 20
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// fetch performs req and returns the body, classifying failures into provider error classes
func fetch(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, goerr.Wrap(ErrProviderTimeout, "request timed out", goerr.V("url", req.URL.String()))
		}
		return nil, goerr.Wrap(ErrProviderTransport, "request failed",
			goerr.V("url", req.URL.String()), goerr.V("cause", err.Error()))
	}
	defer safe.Drain(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.Wrap(ErrProviderStatus, "unexpected status",
			goerr.V("url", req.URL.String()), goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, goerr.Wrap(ErrProviderTimeout, "reading body timed out", goerr.V("url", req.URL.String()))
		}
		return nil, goerr.Wrap(ErrProviderTransport, "failed to read response",
			goerr.V("url", req.URL.String()), goerr.V("cause", err.Error()))
	}
	return body, nil
}
