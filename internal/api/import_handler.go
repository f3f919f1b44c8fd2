package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/taskvault/taskvault/internal/api/shared"
	"github.com/taskvault/taskvault/internal/importer"
)

// maxUploadBytes caps CSV uploads at 10 MiB; payloads travel through the
// broker, so unbounded files would sit in Redis.
const maxUploadBytes = 10 << 20

// ImportHandler handles CSV bulk import submission and status polling.
type ImportHandler struct {
	imports *importer.Service
}

// NewImportHandler creates a new ImportHandler with the given dependencies.
func NewImportHandler(imports *importer.Service) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Upload handles POST /api/upload-csv. The file is validated just enough to
// reject unusable uploads synchronously (missing file, wrong extension, bad
// header); everything row-level happens asynchronously in the worker.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		shared.RespondWithError(w, r, http.StatusBadRequest, "File must be a CSV")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unreadable file")
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "File is empty")
		return
	}

	if err := importer.ValidateHeader(bytes.NewReader(data)); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeHeaderMessage(err))
		return
	}

	job, err := h.imports.Submit(r.Context(), principal.UserID, string(data))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to submit import job", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ImportAcceptedResponse{JobID: job.ID})
}

// GetSafeHeaderMessage sanitizes header validation failures. The missing
// column list is derived from the caller's own file, so echoing it is safe
// and actionable.
func GetSafeHeaderMessage(err error) string {
	if err == nil {
		return "Invalid CSV"
	}
	msg := err.Error()
	if strings.Contains(msg, "missing required columns") {
		return "CSV header " + msg[strings.Index(msg, "missing"):]
	}
	return "Invalid CSV header"
}

// Status handles GET /api/import/{job_id}.
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}

	jobID, err := getPathUUID(r, "job_id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
		return
	}

	job, err := h.imports.Status(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ImportStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Succeeded: job.Succeeded,
		Failed:    job.Failed,
		RowErrors: job.RowErrors,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}
