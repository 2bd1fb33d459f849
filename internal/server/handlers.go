package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/db"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/pipeline"
	"github.com/jonathan/relief-intake/internal/service"
	"github.com/jonathan/relief-intake/internal/transcribe"
	"github.com/jonathan/relief-intake/internal/types"
)

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

// ProcessMessageResponse is returned by POST /api/process_message/
type ProcessMessageResponse struct {
	OK         bool                `json:"ok"`
	Transcript *service.Transcript `json:"transcript,omitempty"`
	Resources  []types.Resource    `json:"resources"`
}

// ListResourcesResponse is returned by GET /api/resources/ without a situation
type ListResourcesResponse struct {
	Resources []types.Resource `json:"resources"`
}

// MatchResponse is returned by GET /api/resources/?situation=...
type MatchResponse struct {
	Situation        string              `json:"situation"`
	IncidentLocation *geo.Point          `json:"incident_location"`
	Resources        []types.MatchResult `json:"resources"`
}

// ResourceResponse wraps a single resource
type ResourceResponse struct {
	OK       bool            `json:"ok"`
	Message  string          `json:"message,omitempty"`
	Resource *types.Resource `json:"resource"`
}

// handleProcessMessage runs intake on a JSON text report or a multipart audio upload
func (s *Server) handleProcessMessage(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		s.handleProcessAudio(w, r)
		return
	}

	var req types.ProcessMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resources, err := s.service.ProcessMessage(r.Context(), &req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ProcessMessageResponse{OK: true, Resources: resources})
}

// handleProcessAudio reads the "file" part and the "metadata" JSON field
func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	var md types.MessageMetadata
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid metadata: "+err.Error())
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "No audio file provided.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read audio file: "+err.Error())
		return
	}

	transcript, resources, err := s.service.ProcessAudio(r.Context(), transcribe.Audio{
		Data:     data,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	}, md)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ProcessMessageResponse{OK: true, Transcript: transcript, Resources: resources})
}

// handleProcessMessageStream runs intake on a JSON report and streams stage progress via SSE
func (s *Server) handleProcessMessageStream(w http.ResponseWriter, r *http.Request) {
	var req types.ProcessMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	resources, err := s.service.ProcessMessageWithProgress(r.Context(), &req, func(e pipeline.ProgressEvent) {
		if werr := sse.WriteEvent("progress", e); werr != nil {
			s.logger.Debug("progress event dropped", zap.Error(werr))
		}
	})
	if err != nil {
		status := HTTPStatus(err)
		sse.WriteError(status, publicMessage(err, status))
		return
	}
	sse.WriteComplete(ProcessMessageResponse{OK: true, Resources: resources})
}

// handleListResources lists resources, or ranks them when a situation is given
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	situation := strings.TrimSpace(q.Get("situation"))

	if situation == "" {
		resources, err := s.service.ListResources(r.Context())
		if err != nil {
			s.serviceError(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, ListResourcesResponse{Resources: resources})
		return
	}

	var incident *geo.Point
	if raw := strings.TrimSpace(q.Get("incident_location_geojson")); raw != "" {
		p, err := geo.ParsePoint([]byte(raw))
		if err != nil {
			// A malformed location falls back to locating the situation text
			s.logger.Info("ignoring malformed incident_location_geojson", zap.Error(err))
		} else {
			incident = p
		}
	}

	results, err := s.service.Match(r.Context(), situation, incident)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MatchResponse{
		Situation:        situation,
		IncidentLocation: incident,
		Resources:        results,
	})
}

// handleCreateResource stores a manual entry
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req types.CreateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resource, err := s.service.CreateResource(r.Context(), &req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ResourceResponse{
		OK:       true,
		Message:  "Resource created successfully.",
		Resource: resource,
	})
}

// handleGetResource returns one resource by id
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resourceID(w, r)
	if !ok {
		return
	}

	resource, err := s.service.GetResource(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, notFound(err, id))
		return
	}
	s.jsonResponse(w, http.StatusOK, ResourceResponse{OK: true, Resource: resource})
}

// handleUpdateResource applies a partial update
func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resourceID(w, r)
	if !ok {
		return
	}

	var req types.UpdateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resource, err := s.service.UpdateResource(r.Context(), id, &req)
	if err != nil {
		s.serviceError(w, r, notFound(err, id))
		return
	}
	s.jsonResponse(w, http.StatusOK, ResourceResponse{OK: true, Resource: resource})
}

// handleSettings returns the active provider configuration
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, settings)
}

func (s *Server) resourceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "Invalid resource ID")
		return 0, false
	}
	return id, true
}

// notFound names the missing id in the error returned to the client.
func notFound(err error, id int64) error {
	if errors.Is(err, db.ErrResourceNotFound) {
		return &ErrResourceNotFound{ID: id}
	}
	return err
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// decodeJSON decodes a size-limited JSON body, rejecting trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}
