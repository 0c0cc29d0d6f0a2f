package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/patch"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string          `json:"error" validate:"required"`
	Kind   string          `json:"kind,omitempty"`
	Detail *mismatchDetail `json:"detail,omitempty"`
}

type mismatchDetail struct {
	Hunk     int    `json:"hunk"`
	Line     int    `json:"line"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	EOF      bool   `json:"eof,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// errorKinds maps each taxonomy error to its status and stable kind label.
// The first match wins: ErrTemplate leads because a template failure can wrap
// a path error from resolving the template location.
var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{apperr.ErrTemplate, http.StatusInternalServerError, "template_error"},
	{apperr.ErrPathEscape, http.StatusBadRequest, "path_escape"},
	{apperr.ErrInvalidPath, http.StatusBadRequest, "invalid_path"},
	{apperr.ErrReservedPath, http.StatusBadRequest, "reserved_path"},
	{apperr.ErrNotAFile, http.StatusBadRequest, "not_a_file"},
	{apperr.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{apperr.ErrConflict, http.StatusConflict, "checksum_mismatch"},
	{apperr.ErrEmptyPatch, http.StatusUnprocessableEntity, "empty_patch"},
	{apperr.ErrInvalidPatch, http.StatusUnprocessableEntity, "invalid_patch"},
	{apperr.ErrPatchDoesNotApply, http.StatusUnprocessableEntity, "patch_does_not_apply"},
}

// writeError maps a service error to its HTTP status. Errors outside the
// taxonomy are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		body := errResponse{Error: err.Error(), Kind: k.kind}
		var me *patch.MismatchError
		if errors.As(err, &me) {
			body.Detail = &mismatchDetail{
				Hunk: me.Hunk, Line: me.Line,
				Expected: me.Expected, Actual: me.Actual, EOF: me.EOF,
			}
		}
		if k.status >= http.StatusInternalServerError {
			slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		}
		writeJSON(w, k.status, body)
		return
	}
	slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
