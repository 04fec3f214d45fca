package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/MrWong99/podium/internal/coverage"
	"github.com/MrWong99/podium/internal/recording"
	"github.com/MrWong99/podium/internal/results"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/types"
)

// createRecordingRequest is the body of POST /v1/recordings.
type createRecordingRequest struct {
	ScriptID string                    `json:"script_id,omitempty"`
	Parts    []types.RawTranscriptPart `json:"parts"`
}

func (s *Server) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := decodeJSON(w, r, DefaultMaxBodyBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	for i, p := range req.Parts {
		if p.PartID == "" {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("parts[%d].part_id is required", i))
			return
		}
	}

	sc, err := s.resolveScript(r.Context(), req.ScriptID)
	if err != nil {
		writeScriptError(w, r, err)
		return
	}

	rec := s.analyze(r.Context(), "api", sc, req.Parts)
	if err := s.store.Save(r.Context(), rec); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Location", "/v1/recordings/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// handleUploadAudio accepts a multipart form with repeated part_id values
// and audio files, paired by position, plus an optional script_id.
func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("audio transcription is not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	ids := r.MultipartForm.Value["part_id"]
	files := r.MultipartForm.File["audio"]
	if len(files) == 0 {
		writeError(w, r, http.StatusBadRequest, errors.New("at least one audio file is required"))
		return
	}
	if len(ids) != len(files) {
		writeError(w, r, http.StatusBadRequest,
			fmt.Errorf("got %d part_id values for %d audio files", len(ids), len(files)))
		return
	}

	sc, err := s.resolveScript(r.Context(), r.PostFormValue("script_id"))
	if err != nil {
		writeScriptError(w, r, err)
		return
	}

	parts := make([]recording.PartAudio, len(files))
	for i, fh := range files {
		if ids[i] == "" {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("part_id[%d] is empty", i))
			return
		}
		data, err := readUpload(fh)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("read audio for %q: %w", ids[i], err))
			return
		}
		parts[i] = recording.PartAudio{PartID: ids[i], Filename: fh.Filename, Data: data}
		if sc != nil {
			if p, ok := sc.Part(ids[i]); ok {
				parts[i].Keywords = coverage.Keywords(p)
			}
		}
	}

	transcribed, err := s.transcriber.Transcribe(r.Context(), parts)
	switch {
	case errors.Is(err, stt.ErrEmptyAudio):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, r, http.StatusBadGateway, err)
		return
	}

	rec := s.analyze(r.Context(), "audio", sc, transcribed)
	if err := s.store.Save(r.Context(), rec); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Location", "/v1/recordings/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !results.ValidID(id) {
		writeError(w, r, http.StatusNotFound, results.ErrNotFound)
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, results.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := results.ListOptions{ScriptID: q.Get("script_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer, got %q", v))
			return
		}
		opts.Limit = n
	}

	recs, err := s.store.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	metas, err := s.scripts.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scripts": metas})
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.resolveScript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeScriptError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func writeScriptError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUnknownScript) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	writeError(w, r, http.StatusInternalServerError, err)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
