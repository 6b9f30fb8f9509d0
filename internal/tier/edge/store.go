// Package edge adapts an external edge/CDN cache to the tier contract over
// its HTTP API. Objects live at {base}/{partition}/{key}; the edge decides
// retention on its own, the TTL is only a hint carried in a header.
package edge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/tier"
)

const (
	defaultRequestTimeout = 3 * time.Second
	ttlHeader             = "X-Cache-TTL-Seconds"
)

type Store struct {
	base   string
	client *http.Client
}

var _ tier.Store = (*Store)(nil)

func New(cfg *config.EdgeCfg) *Store {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Store{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Store) objectURL(partition, key string) string {
	return s.base + "/" + url.PathEscape(partition) + "/" + url.PathEscape(key)
}

func (s *Store) Get(ctx context.Context, partition, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(partition, key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("edge get request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("edge get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("edge get body: %w", err)
		}
		return payload, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("edge get: unexpected status %d", resp.StatusCode)
	}
}

func (s *Store) Set(ctx context.Context, partition, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(partition, key), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("edge put request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(ttlHeader, strconv.FormatInt(int64(ttl.Seconds()), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("edge put: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("edge put: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, partition, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(partition, key), nil)
	if err != nil {
		return fmt.Errorf("edge delete request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("edge delete: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("edge delete: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Store) HealthProbe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("edge probe request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("edge probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("edge probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
