package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/noteservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// filePath extracts the vault path from the URL (everything after the route
// prefix). Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func writeFile(w http.ResponseWriter, status int, f *noteservice.File) {
	w.Header().Set("ETag", checksum.ETag(f.Checksum))
	writeJSON(w, status, f)
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Read a file
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"Vault-relative path"
//	@Success		200		{object}	File
//	@Success		304		"Not modified (If-None-Match)"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.Read(r.Context(), path)
	if err != nil {
		writeError(w, r, "read file", err)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.Matches(inm, []byte(f.Content)) {
		w.Header().Set("ETag", checksum.ETag(f.Checksum))
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeFile(w, http.StatusOK, f)
}

// CreateFile handles POST /api/files.
//
//	@Summary		Create a new file
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFileRequest	true	"File to create"
//	@Success		201		{object}	File
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [post]
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	f, err := h.svc.Create(r.Context(), req.Path, req.Content)
	if err != nil {
		writeError(w, r, "create file", err)
		return
	}
	writeFile(w, http.StatusCreated, f)
}

// UpdateFile handles PUT /api/files/*.
//
//	@Summary		Replace a file's content
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Vault-relative path"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateFileRequest	true	"New content"
//	@Success		200			{object}	File
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [put]
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	f, err := h.svc.Replace(r.Context(), path, *req.Content, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, r, "update file", err)
		return
	}
	writeFile(w, http.StatusOK, f)
}

// PatchFile handles PATCH /api/files/*.
//
//	@Summary		Apply a unified diff to a file
//	@Tags			files
//	@Accept			json,text/x-diff,text/plain
//	@Produce		json
//	@Param			path		path		string				true	"Vault-relative path"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		PatchFileRequest	true	"Unified diff"
//	@Success		200			{object}	File
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [patch]
func (h *Handler) PatchFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	diff := string(body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req PatchFileRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		diff = req.Diff
	}

	f, err := h.svc.Patch(r.Context(), path, diff, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, r, "patch file", err)
		return
	}
	writeFile(w, http.StatusOK, f)
}

// TrashFile handles POST /api/trash/*.
//
//	@Summary		Move a file to the vault trash
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"Vault-relative path"
//	@Success		200		{object}	TrashResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trash/{path} [post]
func (h *Handler) TrashFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.Trash(r.Context(), path)
	if err != nil {
		writeError(w, r, "trash file", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteFile handles DELETE /api/files/*.
//
//	@Summary		Permanently delete a file
//	@Tags			files
//	@Param			path	path	string	true	"Vault-relative path"
//	@Success		204		"File deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, r, "delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DailyNote handles GET /api/daily-note.
//
//	@Summary		Get or create today's daily note
//	@Tags			daily
//	@Produce		json
//	@Success		200	{object}	DailyNoteResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/daily-note [get]
func (h *Handler) DailyNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Daily(r.Context())
	if err != nil {
		writeError(w, r, "daily note", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(n.Checksum))
	writeJSON(w, http.StatusOK, n)
}

// SearchContent handles GET /api/search/content.
//
//	@Summary		Search file contents line by line
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Substring to find"
//	@Param			limit		query		int		false	"Max results"
//	@Param			ignore_case	query		bool	false	"Case-insensitive match"
//	@Success		200			{object}	ContentSearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/content [get]
func (h *Handler) SearchContent(w http.ResponseWriter, r *http.Request) {
	q, ok := searchQuery(w, r)
	if !ok {
		return
	}
	hits, err := h.svc.SearchContent(r.Context(), q.Q, q.options())
	if err != nil {
		writeError(w, r, "search content", err)
		return
	}
	writeJSON(w, http.StatusOK, ContentSearchResponse{Results: hits})
}

// SearchFilename handles GET /api/search/filename.
//
//	@Summary		Search file names (substring or glob)
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Substring or glob pattern"
//	@Param			limit		query		int		false	"Max results"
//	@Param			ignore_case	query		bool	false	"Case-insensitive match"
//	@Success		200			{object}	FilenameSearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/filename [get]
func (h *Handler) SearchFilename(w http.ResponseWriter, r *http.Request) {
	q, ok := searchQuery(w, r)
	if !ok {
		return
	}
	hits, err := h.svc.SearchFilename(r.Context(), q.Q, q.options())
	if err != nil {
		writeError(w, r, "search filename", err)
		return
	}
	writeJSON(w, http.StatusOK, FilenameSearchResponse{Results: hits})
}

func searchQuery(w http.ResponseWriter, r *http.Request) (SearchQuery, bool) {
	v := r.URL.Query()
	q := SearchQuery{Q: v.Get("q")}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
			return q, false
		}
		q.Limit = n
	}
	q.IgnoreCase, _ = strconv.ParseBool(v.Get("ignore_case"))
	if err := q.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return q, false
	}
	return q, true
}
