package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewStandardClient(t *testing.T) {
	c := NewStandardClient(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	var _ HTTPClient = c
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"class_id": 12}`).AddErrorResponse(errors.New("connection refused"))

	req, _ := http.NewRequest(http.MethodPost, "http://detector/classify", strings.NewReader("jpeg-bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"class_id": 12}` {
		t.Errorf("got body %q", body)
	}

	got, sent := mock.Request(0)
	if got == nil || got.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("request not recorded: %v", got)
	}
	if string(sent) != "jpeg-bytes" {
		t.Errorf("recorded body %q", sent)
	}

	req2, _ := http.NewRequest(http.MethodGet, "http://detector/health", nil)
	if _, err := mock.Do(req2); err == nil || err.Error() != "connection refused" {
		t.Errorf("expected queued error, got %v", err)
	}

	// queue exhausted: default 200
	resp, err = mock.Do(req2)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("expected default 200, got %v %v", resp, err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", mock.RequestCount())
	}
	if r, b := mock.Request(7); r != nil || b != nil {
		t.Errorf("out of range Request should be nil")
	}
}
