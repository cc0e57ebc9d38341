package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/services"
)

var (
	viewerInstance *services.ViewerFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleViewerPlan", handleViewerPlan)
}

// main is required by the Go Functions Framework.
func main() {}

// handleViewerPlan accepts the viewer fields as a JSON POST body or as query parameters.
func handleViewerPlan(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		viewerInstance, initErr = services.NewViewerPlanner(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to initialize service"})
		return
	}

	var req models.ViewerPlanRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req = models.ViewerPlanRequest{
			DocumentID:   q.Get("documentId"),
			FileURL:      q.Get("fileUrl"),
			FileType:     q.Get("fileType"),
			Title:        q.Get("title"),
			ThumbnailURL: q.Get("thumbnailUrl"),
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "could not parse JSON"})
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed"})
		return
	}

	plan, err := viewerInstance.Process(r.Context(), &req)
	if err != nil {
		status := services.StatusCode(err)
		if status == http.StatusInternalServerError {
			slog.Error("Failed to build viewer plan", "error", err, "documentId", req.DocumentID)
		}
		writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
