package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"music-sync-srv/internal/database"
	"music-sync-srv/internal/matcher"
	"music-sync-srv/internal/models"
	"music-sync-srv/internal/parser"
	"music-sync-srv/internal/report"
)

/* =========================
   Recovery Middleware
   ========================= */

func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

/* =========================
   Types
   ========================= */

type SyncRequest struct {
	URL          string   `json:"url"`
	Type         string   `json:"type"`
	MatchingMode string   `json:"matching_mode"`
	DryRun       bool     `json:"dry_run"`
	Playlists    []string `json:"playlists"`
	Exclude      []string `json:"exclude"`
}

type server struct {
	engine *engine
}

func newServer(e *engine) http.Handler {
	s := &server{engine: e}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync", RecoveryMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodOptions {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleSync(w, r)
	}))
	mux.HandleFunc("GET /api/v1/reports", RecoveryMiddleware(s.handleListReports))
	mux.HandleFunc("GET /api/v1/reports/{id}", RecoveryMiddleware(s.handleGetReport))
	return mux
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

/* =========================
   SSE Helpers
   ========================= */

func setupSSE(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return flusher, nil
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Println("SSE marshal error:", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("WARN encode response:", err)
	}
}

/* =========================
   Handlers
   ========================= */

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()

	earlyFail := func(msg string, code int) {
		http.Error(w, msg, code)
	}

	/* =========================
	   Parse Request (NO SSE)
	   ========================= */

	var (
		playlists  []models.Playlist
		sourceName string
		req        SyncRequest
		err        error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			earlyFail("Invalid multipart form", http.StatusBadRequest)
			return
		}
		req.Type = r.FormValue("type")
		req.MatchingMode = r.FormValue("matching_mode")
		req.DryRun, _ = strconv.ParseBool(r.FormValue("dry_run"))
		req.Playlists = r.MultipartForm.Value["playlist"]
		req.Exclude = r.MultipartForm.Value["exclude"]

		switch req.Type {
		case "", "csv":
			playlists, sourceName, err = parser.ParseCSVUpload(r)
		case "applemusic":
			file, header, ferr := r.FormFile("file")
			if ferr != nil {
				earlyFail("Missing file", http.StatusBadRequest)
				return
			}
			defer file.Close()
			sourceName = header.Filename
			playlists, err = parser.ParseAppleMusic(file)
		default:
			earlyFail("multipart only supported for type=csv or type=applemusic", http.StatusBadRequest)
			return
		}
		if err != nil {
			earlyFail("Library parse failed: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			earlyFail("Invalid JSON body", http.StatusBadRequest)
			return
		}

		parsedURL, err := url.Parse(req.URL)
		if err != nil || parsedURL.Host == "" {
			earlyFail("Invalid URL", http.StatusBadRequest)
			return
		}

		switch req.Type {
		case "spotify":
			if !strings.Contains(parsedURL.Host, "spotify.com") {
				earlyFail("Invalid Spotify URL", http.StatusBadRequest)
				return
			}
			if s.engine.spotifySource == nil {
				earlyFail("Spotify source not configured", http.StatusServiceUnavailable)
				return
			}
			playlists, err = s.engine.spotifySource.Parse(ctx, req.URL)
		case "youtube":
			if !strings.Contains(parsedURL.Host, "youtube.com") &&
				!strings.Contains(parsedURL.Host, "youtu.be") {
				earlyFail("Invalid YouTube URL", http.StatusBadRequest)
				return
			}
			playlists, err = parser.ParseYouTube(ctx, req.URL)
		default:
			earlyFail("Unsupported source type", http.StatusBadRequest)
			return
		}
		if err != nil {
			earlyFail("Extraction failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		sourceName = req.URL
	}

	switch strings.ToLower(req.MatchingMode) {
	case "", matcher.ModeLenient, matcher.ModeStrict:
	default:
		earlyFail("Unsupported matching mode", http.StatusBadRequest)
		return
	}

	playlists = parser.Filter(playlists, req.Playlists, req.Exclude)
	total := 0
	for _, p := range playlists {
		total += len(p.Tracks)
	}
	if total == 0 {
		earlyFail("No tracks found", http.StatusBadRequest)
		return
	}

	/* =========================
	   SSE Setup (SAFE POINT)
	   ========================= */

	flusher, err := setupSSE(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	send := func(v any) { sendEvent(w, flusher, v) }

	send(map[string]any{
		"status":    "extracting",
		"message":   fmt.Sprintf("Parsed %d tracks in %d playlists", total, len(playlists)),
		"playlists": len(playlists),
	})

	onProgress := func(index, count int, row models.ReportRow) {
		send(map[string]any{
			"status":   "processing",
			"playlist": row.Track.PlaylistID,
			"index":    index,
			"total":    count,
			"result":   row,
		})
	}

	reports, err := s.engine.run(ctx, playlists, runOptions{
		Mode:       strings.ToLower(req.MatchingMode),
		DryRun:     req.DryRun,
		OnProgress: onProgress,
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Client disconnected")
			return
		}
		send(map[string]string{
			"status":  "error",
			"message": "Sync failed: " + err.Error(),
		})
		return
	}

	/* =========================
	   Final
	   ========================= */

	send(map[string]any{
		"status": "complete",
		"meta": map[string]any{
			"source_name": sourceName,
			"dry_run":     req.DryRun,
			"timestamp":   time.Now().Format(time.RFC3339),
		},
		"reports": reports,
	})
}

func (s *server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := database.ListReports(r.Context(), s.engine.db, r.URL.Query().Get("playlist"), limit)
	if err != nil {
		log.Println("WARN list reports:", err)
		http.Error(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []database.ReportSummary{}
	}
	writeJSON(w, summaries)
}

func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := database.GetReport(r.Context(), s.engine.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Println("WARN get report:", err)
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(rep)))
		if err := report.Encode(w, rep, true); err != nil {
			log.Println("WARN encode csv:", err)
		}
		return
	}
	writeJSON(w, rep)
}
