// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// CourseRecords is a four-obstacle layout in canonical record form, listed
// out of scan order. From StartPose every leg is plannable on the default
// geometry.
const CourseRecords = "30,15,15,S,3;10,5,10,N,1;40,6,15,W,4;20,12,6,E,2"

// StartPose is the start pose CourseRecords is designed for.
var StartPose = grid.NewPose(1, 1, grid.North)

// Course returns CourseRecords parsed.
func Course(t testing.TB) []waypoint.Waypoint {
	t.Helper()
	wps, err := waypoint.ParseRecords(CourseRecords)
	if err != nil {
		t.Fatalf("parse course: %v", err)
	}
	return wps
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewJSONRequest builds a test request whose body is v encoded as JSON.
// A string or []byte body is sent verbatim.
func NewJSONRequest(t testing.TB, method, path string, v any) *http.Request {
	t.Helper()
	var body io.Reader
	switch b := v.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes a recorded response body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
