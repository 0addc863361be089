package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /index/{doc_id}", s.handleIndex)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /answer", s.handleAnswer)
	mux.HandleFunc("POST /ask", s.handleAsk)

	return mux
}
