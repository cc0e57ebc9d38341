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
	generatorInstance *services.ThumbnailFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleGenerateThumbnail" is the entry point name configured in GCP.
	functions.HTTP("HandleGenerateThumbnail", handleGenerateThumbnail)
}

// main is required by the Go Functions Framework.
func main() {}

// handleGenerateThumbnail is the HTTP handler for the thumbnail generator.
func handleGenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		generatorInstance, initErr = services.NewThumbnailGenerator(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeError(w, http.StatusInternalServerError, "failed to initialize service")
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := generatorInstance.Authorize(r.Header.Get("Authorization")); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.GenerateThumbnailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return
	}

	res, err := generatorInstance.Process(r.Context(), &req)
	if err != nil {
		// The specific error is already logged inside the pipeline.
		writeError(w, services.StatusCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
