package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/detect"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
)

// ImageResponse is the detector verdict for a scan. Rescan holds the retry
// sequence when nothing was recognised.
type ImageResponse struct {
	detect.Detection
	Rescan []command.Command `json:"rescan,omitempty"`
}

// handleImage relays a scan image to the classifier. The image is either a
// multipart "file" field or the raw request body; obstacle_id comes from the
// query string or the multipart form.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.classifier == nil {
		httputil.ServiceUnavailable(w, "image recognition is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	image, err := readImage(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	id, err := obstacleIDParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	det, err := s.classifier.Classify(r.Context(), id, image)
	if errors.Is(err, detect.ErrEmptyImage) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		monitoring.Logf("classify obstacle %d: %v", id, err)
		httputil.BadGateway(w, err.Error())
		return
	}

	resp := ImageResponse{Detection: *det}
	if !det.Recognised() {
		if resp.Rescan, err = s.compiler.RescanCommands(det.ObstacleID); err != nil {
			httputil.BadGateway(w, err.Error())
			return
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func readImage(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}
