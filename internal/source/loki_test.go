package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLokiSource(baseURL string) *LokiSource {
	return NewLokiSource(LokiSourceConfig{
		BaseURL: baseURL,
		Service: "payments-api",
		Window:  time.Hour,
		Timeout: 5 * time.Second,
	})
}

func TestLokiSource_FetchBatch_JoinsLinesWithNewline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/query_range" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		resp := lokiQueryResponse{
			Data: lokiData{
				Result: []lokiStream{
					{
						Stream: map[string]string{"service": "payments-api"},
						Values: [][2]string{
							{"1708128000000000000", "ERROR: connection refused"},
							{"1708128060000000000", "ERROR: retry attempt 1 failed"},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	src := newTestLokiSource(ts.URL)
	data, err := src.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "ERROR: connection refused\nERROR: retry attempt 1 failed"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestLokiSource_FetchBatch_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	src := newTestLokiSource(ts.URL)
	_, err := src.FetchBatch(context.Background())
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("expected ErrSourceUnreachable, got %v", err)
	}
}

func TestLokiSource_FetchBatch_ConnectionRefused(t *testing.T) {
	src := newTestLokiSource("http://127.0.0.1:1")
	_, err := src.FetchBatch(context.Background())
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("expected ErrSourceUnreachable, got %v", err)
	}
}

func TestLokiSource_FetchBatch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	src := newTestLokiSource(ts.URL)
	_, err := src.FetchBatch(ctx)
	if !errors.Is(err, ErrSourceTimeout) {
		t.Errorf("expected ErrSourceTimeout, got %v", err)
	}
}

func TestLokiSource_FetchBatch_EmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(lokiQueryResponse{})
	}))
	defer ts.Close()

	src := newTestLokiSource(ts.URL)
	data, err := src.FetchBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty batch, got %q", data)
	}
}
