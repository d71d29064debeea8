// Package detect forwards scan images to the object-detection service and
// decodes its verdict.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
)

// ErrEmptyImage is returned when Classify is given no image bytes.
var ErrEmptyImage = errors.New("empty image")

// Unrecognised is the class id the detector reports when it sees nothing.
const Unrecognised = "NA"

// maxResponseBytes caps how much of a detector reply is read.
const maxResponseBytes = 1 << 20

const defaultTimeout = 30 * time.Second

// Detection is the detector's verdict for one obstacle face.
type Detection struct {
	ObstacleID int     `json:"obstacle_id"`
	ClassID    string  `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// Recognised reports whether the detector named a class.
func (d Detection) Recognised() bool {
	return d.ClassID != "" && d.ClassID != Unrecognised
}

// Classifier classifies an image captured in front of an obstacle.
type Classifier interface {
	Classify(ctx context.Context, obstacleID int, image []byte) (*Detection, error)
}

// StatusError is returned when the detector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detector returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPClassifier posts images as multipart "file" uploads.
type HTTPClassifier struct {
	client httputil.HTTPClient
	url    string
}

// NewHTTPClassifier returns a classifier that posts to url. A nil client
// uses NewStandardClient with a 30s timeout.
func NewHTTPClassifier(url string, client httputil.HTTPClient) *HTTPClassifier {
	if client == nil {
		client = httputil.NewStandardClient(defaultTimeout)
	}
	return &HTTPClassifier{client: client, url: url}
}

// Classify uploads image and returns the detector's verdict. The obstacle id
// is sent as a form field and defaults the reply's obstacle_id.
func (c *HTTPClassifier) Classify(ctx context.Context, obstacleID int, image []byte) (*Detection, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	body, contentType, err := encodeUpload(obstacleID, image)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify obstacle %d: %w", obstacleID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading detector response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	det, err := decodeDetection(data, obstacleID)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("obstacle %d classified as %q (%.2f)", det.ObstacleID, det.ClassID, det.Confidence)
	return det, nil
}

func encodeUpload(obstacleID int, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("obstacle_id", strconv.Itoa(obstacleID)); err != nil {
		return nil, "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// wireDetection accepts both the current class_id key and the image_id key
// older detector builds send. Ids may arrive as numbers or strings.
type wireDetection struct {
	ObstacleID json.RawMessage `json:"obstacle_id"`
	ClassID    json.RawMessage `json:"class_id"`
	ImageID    json.RawMessage `json:"image_id"`
	Confidence float64         `json:"confidence"`
}

func decodeDetection(data []byte, obstacleID int) (*Detection, error) {
	var w wireDetection
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding detector response: %w", err)
	}

	det := &Detection{ObstacleID: obstacleID, Confidence: w.Confidence}
	class := w.ClassID
	if len(class) == 0 {
		class = w.ImageID
	}
	if len(class) == 0 || string(class) == "null" {
		return nil, fmt.Errorf("detector response has no class_id: %s", data)
	}
	det.ClassID = rawString(class)

	if len(w.ObstacleID) > 0 && string(w.ObstacleID) != "null" {
		id, err := strconv.Atoi(rawString(w.ObstacleID))
		if err != nil {
			return nil, fmt.Errorf("detector obstacle_id %s: %w", w.ObstacleID, err)
		}
		det.ObstacleID = id
	}
	return det, nil
}

// rawString unquotes a JSON string or returns a bare literal as-is.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
