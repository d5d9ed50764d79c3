package out

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	connectivityout "tether/internal/modules/connectivity/port/out"
)

// HTTPHealthProber issues GET against the remote /healthz endpoint.
type HTTPHealthProber struct {
	url    string
	client *http.Client
}

func NewHTTPHealthProber(url string, client *http.Client) connectivityout.Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHealthProber{url: url, client: client}
}

func (p *HTTPHealthProber) Probe(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build health request: %w", err)
	}
	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return time.Since(started), nil
}
