package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// FolderResolver maps a folder path to its Drive ID.
type FolderResolver interface {
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

type Handler struct {
	source        FileSource
	folders       FolderResolver
	ingestService *IngestService
	defaultFolder string
}

func NewHandler(source FileSource, folders FolderResolver, ingestService *IngestService, defaultFolder string) *Handler {
	return &Handler{
		source:        source,
		folders:       folders,
		ingestService: ingestService,
		defaultFolder: defaultFolder,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/ingest", h.IngestFile).Methods(http.MethodPost)
	router.HandleFunc("/api/drive/ingest/folder", h.IngestFolder).Methods(http.MethodPost)
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []*File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "transactions.csv"
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=transactions.csv")

	if err := download(r.Context(), h.source, &File{ID: fileID, Name: name}, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = fileID + ".csv"
	}

	result, err := h.ingestService.IngestFile(r.Context(), fileID, name)
	if err != nil {
		http.Error(w, fmt.Sprintf("ingestion failed: %v", err), ingestStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IngestFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	results, err := h.ingestService.IngestFolder(r.Context(), folderID)
	if err != nil {
		http.Error(w, fmt.Sprintf("ingestion failed: %v", err), ingestStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "files": results})
}

func (h *Handler) resolveFolder(r *http.Request) (string, error) {
	query := r.URL.Query()
	if path := query.Get("path"); path != "" && h.folders != nil {
		return h.folders.FindFolderByPath(r.Context(), path)
	}
	if id := query.Get("folderId"); id != "" {
		return id, nil
	}
	return h.defaultFolder, nil
}

func ingestStatus(err error) int {
	if errors.Is(err, domain.ErrMalformedInput) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
