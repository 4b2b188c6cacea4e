package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// EmulatorProbe checks that the emulator answers GET /sensors.
type EmulatorProbe struct {
	url    string
	client *http.Client
}

func NewEmulatorProbe(baseURL string, timeout time.Duration) *EmulatorProbe {
	return &EmulatorProbe{
		url:    baseURL + "/sensors",
		client: &http.Client{Timeout: timeout},
	}
}

func (p *EmulatorProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("emulator probe: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("emulator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emulator returned %d", resp.StatusCode)
	}
	return nil
}
