package web

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
	"facegreeter/internal/web/handlers"
	"facegreeter/internal/web/static"
)

func (s *Server) setupRoutes(baseCtx context.Context, st store.Store, chain *recognition.Chain, frames *recognition.FrameBuffer, broadcaster *recognition.Broadcaster) {
	healthHandler := handlers.NewHealthHandler(chain)
	framesHandler := handlers.NewFramesHandler(frames)
	usersHandler := handlers.NewUsersHandler(st, chain, frames)
	recognitionHandler := handlers.NewRecognitionHandler(baseCtx, s.engine, broadcaster)
	analysisHandler := handlers.NewAnalysisHandler(st, chain)
	chatHandler := handlers.NewChatHandler(st, chain, s.config.Recognition.Persona)
	logsHandler := handlers.NewLogsHandler(st)
	configHandler := handlers.NewConfigHandler(s.config, chain)
	statsHandler := handlers.NewStatsHandler(st, chain)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		r.Post("/frames", framesHandler.Push)

		r.Get("/users", usersHandler.List)
		r.Post("/users", usersHandler.Enroll)
		r.Get("/users/{id}", usersHandler.Get)
		r.Put("/users/{id}", usersHandler.Rename)
		r.Delete("/users/{id}", usersHandler.Delete)
		r.Get("/users/{id}/emotions", usersHandler.Emotions)
		r.Get("/users/{id}/messages", usersHandler.Messages)

		r.Post("/recognize", recognitionHandler.RecognizeOnce)
		r.Post("/recognition/start", recognitionHandler.Start)
		r.Post("/recognition/stop", recognitionHandler.Stop)
		r.Get("/recognition/events", recognitionHandler.Events)

		r.Post("/detect", analysisHandler.Detect)
		r.Post("/emotion", analysisHandler.Emotion)
		r.Post("/liveness", analysisHandler.Liveness)

		r.Post("/chat", chatHandler.Send)

		r.Get("/logs", logsHandler.List)
		r.Get("/config", configHandler.Get)
		r.Get("/stats", statsHandler.Get)
	})

	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the embedded single-page frontend.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		fs := static.GetFileSystem()
		p := r.URL.Path
		if p == "/" {
			p = "/index.html"
		}

		f, err := fs.Open(p)
		if err == nil {
			defer f.Close()
			if stat, err := f.Stat(); err == nil && !stat.IsDir() {
				contentType := mime.TypeByExtension(path.Ext(p))
				if contentType == "" {
					contentType = "application/octet-stream"
				}
				w.Header().Set("Content-Type", contentType)
				if strings.HasPrefix(p, "/assets/") {
					w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				}
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		// SPA routing: unknown non-asset paths fall back to index.html.
		if !strings.HasPrefix(p, "/assets/") {
			if index, err := fs.Open("/index.html"); err == nil {
				defer index.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, index)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Face Greeter</title></head>
<body style="font-family: system-ui, sans-serif; background: #1a1a2e; color: #eee; text-align: center; padding-top: 20vh;">
<h1 style="color: #00d9ff;">Face Greeter</h1>
<p>Frontend is not built. API is available at <a style="color: #00d9ff;" href="/api/v1/health">/api/v1/health</a></p>
</body>
</html>`))
}
