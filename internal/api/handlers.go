package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/emotivox/internal/history"
	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/internal/render"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ttsResponse is a render result plus the public URL of the file.
type ttsResponse struct {
	render.Result
	Path string `json:"path,omitempty"`
}

type batchRequest struct {
	Requests []render.Request `json:"requests"`
}

type batchResponse struct {
	Results   []ttsResponse `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

type manipulateResponse struct {
	render.ManipulateResult
	Path string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (rt *Router) languages(w http.ResponseWriter, _ *http.Request) {
	reg := rt.cfg.Orchestrator.Resolver().Registry()
	langs := make(map[string]string, reg.Languages.Len())
	for code, name := range reg.Languages.All() {
		langs[code] = name
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": langs})
}

func (rt *Router) emotions(w http.ResponseWriter, _ *http.Request) {
	reg := rt.cfg.Orchestrator.Resolver().Registry()
	writeJSON(w, http.StatusOK, map[string]any{"emotions": reg.Emotions.Keys()})
}

func (rt *Router) voiceTypes(w http.ResponseWriter, _ *http.Request) {
	type voice struct {
		Name string `json:"name"`
		preset.VoiceTypeParams
	}
	reg := rt.cfg.Orchestrator.Resolver().Registry()
	var out []voice
	for name, v := range reg.VoiceTypes.All() {
		out = append(out, voice{Name: name, VoiceTypeParams: v})
	}
	writeJSON(w, http.StatusOK, map[string]any{"voice_types": out})
}

func (rt *Router) effects(w http.ResponseWriter, _ *http.Request) {
	type effect struct {
		Name string `json:"name"`
		preset.AudioEffectDescriptor
	}
	reg := rt.cfg.Orchestrator.Resolver().Registry()
	var out []effect
	for name, e := range reg.Effects.All() {
		out = append(out, effect{Name: name, AudioEffectDescriptor: e})
	}
	writeJSON(w, http.StatusOK, map[string]any{"effects": out})
}

func (rt *Router) prosodyLevels(w http.ResponseWriter, _ *http.Request) {
	reg := rt.cfg.Orchestrator.Resolver().Registry()
	writeJSON(w, http.StatusOK, map[string]any{"prosody_levels": reg.Prosody.Keys()})
}

// validate applies the request-level checks and fills omitted preset keys
// with their defaults. It returns the HTTP status and message of the first
// failure, or 0.
func (rt *Router) validate(req *render.Request) (int, string) {
	for _, f := range []struct {
		field *string
		def   string
	}{
		{&req.Language, preset.DefaultLanguage},
		{&req.Emotion, preset.NeutralEmotion},
		{&req.VoiceType, preset.DefaultVoiceType},
		{&req.ProsodyLevel, preset.NaturalProsody},
		{&req.AudioEffect, string(preset.EffectNone)},
	} {
		if *f.field == "" {
			*f.field = f.def
		}
	}
	if strings.TrimSpace(req.Text) == "" {
		return http.StatusBadRequest, "Text cannot be empty"
	}
	if n := render.WordCount(req.Text); n > rt.cfg.MaxWords {
		return http.StatusBadRequest, fmt.Sprintf("Text exceeds maximum length of %d words (current: %d words)", rt.cfg.MaxWords, n)
	}
	if req.Format == "" {
		req.Format = rt.cfg.DefaultFormat
	}
	return 0, ""
}

func (rt *Router) tts(w http.ResponseWriter, r *http.Request) {
	var req render.Request
	if !decode(w, r, &req) {
		return
	}
	if status, msg := rt.validate(&req); status != 0 {
		writeError(w, status, msg)
		return
	}

	rt.logger.InfoContext(r.Context(), "generating speech",
		"language", req.Language,
		"emotion", req.Emotion,
		"word_count", render.WordCount(req.Text),
	)
	res, err := rt.cfg.Orchestrator.Render(r.Context(), req)
	status := http.StatusOK
	switch {
	case errors.Is(err, render.ErrEmptyInput):
		status = http.StatusBadRequest
	case err != nil:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ttsResponse{Result: res, Path: rt.publicURL(res.FilePath)})
}

func (rt *Router) ttsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	switch n := len(req.Requests); {
	case n == 0:
		writeError(w, http.StatusBadRequest, "requests cannot be empty")
		return
	case n > MaxBatchSize:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds maximum of %d requests (current: %d)", MaxBatchSize, n))
		return
	}

	results := make([]ttsResponse, len(req.Requests))
	var g errgroup.Group
	g.SetLimit(BatchConcurrency)
	for i, item := range req.Requests {
		g.Go(func() error {
			if status, msg := rt.validate(&item); status != 0 {
				results[i] = ttsResponse{Result: render.Result{Error: msg, WordCount: render.WordCount(item.Text)}}
				return nil
			}
			res, _ := rt.cfg.Orchestrator.Render(r.Context(), item)
			results[i] = ttsResponse{Result: res, Path: rt.publicURL(res.FilePath)}
			return nil
		})
	}
	_ = g.Wait()

	resp := batchResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) manipulate(w http.ResponseWriter, r *http.Request) {
	var req render.ManipulateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AudioPath) == "" {
		writeError(w, http.StatusBadRequest, "audio_path is required")
		return
	}
	if e := preset.Effect(strings.TrimSpace(req.EffectType)); e != "" && !e.IsKnown() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown audio effect %q", req.EffectType))
		return
	}

	res, err := rt.cfg.Orchestrator.Manipulate(r.Context(), req)
	status := http.StatusOK
	switch {
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case err != nil:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, manipulateResponse{ManipulateResult: res, Path: rt.publicURL(res.FilePath)})
}

func (rt *Router) listRenders(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.History == nil {
		writeError(w, http.StatusNotFound, "render history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := rt.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		rt.logger.Error("list renders", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load render history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"renders": entries, "count": len(entries)})
}

func (rt *Router) getRender(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.History == nil {
		writeError(w, http.StatusNotFound, "render history is not enabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid render ID")
		return
	}
	e, err := rt.cfg.History.Get(r.Context(), id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "render not found")
	case err != nil:
		rt.logger.Error("get render", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load render")
	default:
		writeJSON(w, http.StatusOK, e)
	}
}

func (rt *Router) serveAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if !filepath.IsLocal(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(rt.cfg.Orchestrator.Exporter().Dir(), name))
}
