package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/schema"
)

const maxRequestBodySize = 1 << 20 // 1MB

type Deps struct {
	Record *prefs.Record
	// Mu guards Record. Share it with any other goroutine touching the
	// record; when nil the handler uses its own.
	Mu *sync.Mutex
	// Token enables bearer authentication when non-empty.
	Token string
}

// PrefsResponse is the body of GET and PATCH /prefs.
type PrefsResponse struct {
	Schema   string         `json:"schema"`
	Location string         `json:"location"`
	Values   map[string]any `json:"values"`
}

// FieldResponse is the body of GET and PUT /prefs/{field}.
type FieldResponse struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Value   any    `json:"value"`
	Default any    `json:"default"`
}

// LocationResponse is the body of GET /location.
type LocationResponse struct {
	Location string `json:"location"`
	Key      string `json:"key"`
}

type setRequest struct {
	Value any `json:"value"`
}

// NewHandler returns the HTTP API for a loaded record.
func NewHandler(deps Deps) http.Handler {
	if deps.Mu == nil {
		deps.Mu = &sync.Mutex{}
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get("/prefs", handleGetPrefs(deps))
		r.Patch("/prefs", handlePatchPrefs(deps))
		r.Post("/prefs/reload", handleReload(deps))
		r.Get("/prefs/{field}", handleGetField(deps))
		r.Put("/prefs/{field}", handlePutField(deps))
		r.Get("/location", handleLocation(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetPrefs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Mu.Lock()
		resp := prefsResponse(deps.Record)
		deps.Mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetField(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "field")
		f, ok := deps.Record.Schema().Field(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "unknown field %q", name)
			return
		}
		deps.Mu.Lock()
		resp := fieldResponse(deps.Record, f)
		deps.Mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePutField(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "field")
		f, ok := deps.Record.Schema().Field(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "unknown field %q", name)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req setRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		v, err := valueFor(f, req.Value)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		deps.Mu.Lock()
		defer deps.Mu.Unlock()
		if err := deps.Record.SaveValue(name, v); err != nil {
			writeSaveError(w, err)
			return
		}
		slog.Debug("preference updated", "field", name)
		writeJSON(w, http.StatusOK, fieldResponse(deps.Record, f))
	}
}

// handlePatchPrefs applies every field in the body in one transaction. All
// values are validated before any is applied.
func handlePatchPrefs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s := deps.Record.Schema()
		names := make([]string, 0, len(body))
		values := make(map[string]any, len(body))
		for name, raw := range body {
			f, ok := s.Field(name)
			if !ok {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown field %q", name)
				return
			}
			v, err := valueFor(f, raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			names = append(names, name)
			values[name] = v
		}
		sort.Strings(names)

		deps.Mu.Lock()
		defer deps.Mu.Unlock()
		err := deps.Record.Update(func(tx *prefs.Txn) error {
			for _, name := range names {
				if err := tx.SetValue(name, values[name]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			writeSaveError(w, err)
			return
		}
		slog.Debug("preferences patched", "fields", names)
		writeJSON(w, http.StatusOK, prefsResponse(deps.Record))
	}
}

func handleReload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Mu.Lock()
		defer deps.Mu.Unlock()
		if err := deps.Record.Reload(); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "reloading preferences: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, prefsResponse(deps.Record))
	}
}

func handleLocation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, LocationResponse{
			Location: deps.Record.Describe(),
			Key:      deps.Record.Key(),
		})
	}
}

func prefsResponse(rec *prefs.Record) PrefsResponse {
	return PrefsResponse{
		Schema:   rec.Schema().Name(),
		Location: rec.Describe(),
		Values:   rec.Values(),
	}
}

func fieldResponse(rec *prefs.Record, f schema.Descriptor) FieldResponse {
	v, _ := rec.Value(f.Name())
	return FieldResponse{
		Name:    f.Name(),
		Key:     f.Key(),
		Kind:    f.Kind().String(),
		Value:   v,
		Default: f.Default(),
	}
}

// valueFor converts a decoded JSON value to f's kind. Strings are parsed for
// non-string fields so clients can send command-line text as is.
func valueFor(f schema.Descriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("field %q: value is required", f.Name())
	case json.Number:
		switch f.Kind() {
		case schema.KindInt:
			i, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("field %q: %s is not an integer", f.Name(), v)
			}
			return i, nil
		case schema.KindFloat:
			x, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %q: %s is not a number", f.Name(), v)
			}
			return x, nil
		}
		return nil, fmt.Errorf("field %q is %s, got a number", f.Name(), f.Kind())
	case string:
		if f.Kind() == schema.KindString {
			return v, nil
		}
		parsed, err := f.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name(), err)
		}
		return parsed, nil
	case bool:
		if f.Kind() != schema.KindBool {
			return nil, fmt.Errorf("field %q is %s, got a bool", f.Name(), f.Kind())
		}
		return v, nil
	}
	return nil, fmt.Errorf("field %q: unsupported value %T", f.Name(), raw)
}

func writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prefs.ErrUnknownField):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, prefs.ErrKindMismatch):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		slog.Error("saving preferences", "error", err)
		httpError(w, http.StatusInternalServerError, "storage_error", "saving preferences: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
