package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/logdigest/pkg/logql"
)

// LokiSource is the concrete RawLogSource backed by Loki's HTTP query API.
// Each FetchBatch call queries the trailing Window and joins every matched
// line with "\n".
type LokiSource struct {
	baseURL  string
	username string
	password string
	orgID    string
	client   *http.Client
	builder  logql.QueryBuilder
	params   logql.DetectionParams
	window   time.Duration
	limit    int
}

// LokiSourceConfig configures a LokiSource.
type LokiSourceConfig struct {
	BaseURL   string
	Username  string
	Password  string
	OrgID     string
	Service   string
	Namespace string
	Levels    []string
	Window    time.Duration
	Limit     int
	Timeout   time.Duration
}

// NewLokiSource builds a LokiSource from cfg.
func NewLokiSource(cfg LokiSourceConfig) *LokiSource {
	return &LokiSource{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		orgID:    cfg.OrgID,
		client:   &http.Client{Timeout: cfg.Timeout},
		params: logql.DetectionParams{
			Service:   cfg.Service,
			Namespace: cfg.Namespace,
			Levels:    cfg.Levels,
		},
		window: cfg.Window,
		limit:  cfg.Limit,
	}
}

func (s *LokiSource) FetchBatch(ctx context.Context) ([]byte, error) {
	now := time.Now().UTC()
	params := s.params
	params.Start = now.Add(-s.window)
	params.End = now

	query := s.builder.BuildDetectionQuery(params)

	values := url.Values{
		"query":     {query},
		"start":     {strconv.FormatInt(params.Start.UnixNano(), 10)},
		"end":       {strconv.FormatInt(params.End.UnixNano(), 10)},
		"direction": {"forward"},
	}
	if s.limit > 0 {
		values.Set("limit", strconv.Itoa(s.limit))
	}

	u := fmt.Sprintf("%s/loki/api/v1/query_range?%s", s.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building loki request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: loki returned status %d", ErrSourceUnreachable, resp.StatusCode)
	}

	var parsed lokiQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding loki response: %w", err)
	}

	var lines []string
	for _, stream := range parsed.Data.Result {
		for _, v := range stream.Values {
			lines = append(lines, v[1])
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func (s *LokiSource) setHeaders(req *http.Request) {
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	if s.orgID != "" {
		req.Header.Set("X-Scope-OrgID", s.orgID)
	}
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
}

type lokiQueryResponse struct {
	Data lokiData `json:"data"`
}

type lokiData struct {
	Result []lokiStream `json:"result"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

var _ RawLogSource = (*LokiSource)(nil)
