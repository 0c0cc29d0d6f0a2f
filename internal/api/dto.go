package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/search"
)

// CreateFileRequest is the request body for creating a file. Empty content
// is allowed.
type CreateFileRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld"`
}

// Validate implements validation.Validatable.
func (r CreateFileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// UpdateFileRequest is the request body for replacing a file.
type UpdateFileRequest struct {
	Content *string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// Validate implements validation.Validatable.
func (r UpdateFileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.NotNil),
	)
}

// PatchFileRequest is the JSON form of a patch request. Raw text/x-diff
// bodies are accepted as well.
type PatchFileRequest struct {
	Diff string `json:"diff" example:"@@ -2 +2 @@\n-line2\n+lineX\n"`
}

// SearchQuery holds the common search parameters.
type SearchQuery struct {
	Q          string
	Limit      int
	IgnoreCase bool
}

// Validate implements validation.Validatable.
func (q SearchQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Q, validation.Required),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(search.MaxLimit)),
	)
}

func (q SearchQuery) options() search.Options {
	return search.Options{Limit: q.Limit, IgnoreCase: q.IgnoreCase}
}

// File is the file response type (aliased from the domain layer).
type File = noteservice.File

// TrashResponse is returned after a file is moved to the trash.
type TrashResponse = noteservice.Trashed

// DailyNoteResponse is the daily note response.
type DailyNoteResponse = noteservice.DailyNote

// ContentSearchResponse wraps content search hits.
type ContentSearchResponse struct {
	Results []models.ContentHit `json:"results" validate:"required"`
}

// FilenameSearchResponse wraps filename search hits.
type FilenameSearchResponse struct {
	Results []models.FileHit `json:"results" validate:"required"`
}
