package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chrisconley/auditor-collector/specs"
	"github.com/google/uuid"
)

// HTTPDeliverer posts records as JSON to the accounting service's /record endpoint.
type HTTPDeliverer struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

func NewHTTPDeliverer(addr string, port int, timeout time.Duration) *HTTPDeliverer {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &HTTPDeliverer{
		baseURL:   fmt.Sprintf("%s:%d", strings.TrimRight(addr, "/"), port),
		client:    NewHTTPClient(timeout),
		userAgent: "auditor-slurm-epilog-collector",
	}
}

func (d *HTTPDeliverer) Name() string { return "http" }

func (d *HTTPDeliverer) Deliver(ctx context.Context, record specs.RecordSpec) Outcome {
	body, err := json.Marshal(record)
	if err != nil {
		return Rejected("encode record: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/record", bytes.NewReader(body))
	if err != nil {
		return Rejected("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		return Unreachable("%v", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode/100 == 2:
		return Acknowledged()
	case resp.StatusCode == http.StatusConflict:
		// Record id already known to the service.
		return Acknowledged()
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return Unreachable("%s", resp.Status)
	case resp.StatusCode/100 == 4:
		return Rejected("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	default:
		return Unreachable("%s", resp.Status)
	}
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}
