package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pdfqa/internal/domain"
	"pdfqa/internal/usecase"
)

type searchRequest struct {
	DocID string `json:"doc_id" validate:"required"`
	Query string `json:"query" validate:"required"`
	K     *int   `json:"k"`
}

type answerRequest struct {
	Question string                `json:"question" validate:"required"`
	Results  []domain.SearchResult `json:"results"`
}

type askRequest struct {
	DocID    string `json:"doc_id" validate:"required"`
	Question string `json:"question" validate:"required"`
	K        *int   `json:"k"`
}

type askResponse struct {
	Search *domain.SearchResponse `json:"search"`
	Answer *domain.Answer         `json:"answer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload streams the multipart "file" part straight into ingestion.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		s.writeOpError(w, r, fmt.Errorf("%w: expected multipart/form-data: %v", domain.ErrInvalidInput, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeOpError(w, r, fmt.Errorf("%w: missing form field \"file\"", domain.ErrInvalidInput))
			return
		}
		if err != nil {
			s.writeOpError(w, r, fmt.Errorf("%w: malformed multipart body: %v", domain.ErrInvalidInput, err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		var result *domain.UploadResult
		err = s.pool.Do(r.Context(), func(ctx context.Context) error {
			var err error
			result, err = s.deps.Ingest.Upload(ctx, usecase.UploadRequest{
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Body:        part,
			})
			return err
		})
		part.Close()
		if err != nil {
			s.writeOpError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusOK, result)
		return
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("doc_id")

	var stats *domain.IndexBuildStats
	err := s.pool.Do(r.Context(), func(ctx context.Context) error {
		var err error
		stats, err = s.deps.Index.Build(ctx, docID, nil)
		return err
	})
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeOpError(w, r, err)
		return
	}

	resp, err := s.search(r.Context(), req.DocID, req.Query, s.kOrDefault(req.K))
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeOpError(w, r, err)
		return
	}

	answer, err := s.answer(r.Context(), req.Question, req.Results)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, answer)
}

// handleAsk runs search and answer in one request.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeOpError(w, r, err)
		return
	}

	resp, err := s.search(r.Context(), req.DocID, req.Question, s.kOrDefault(req.K))
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}

	answer, err := s.answer(r.Context(), req.Question, resp.Results)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, askResponse{Search: resp, Answer: answer})
}

func (s *Server) search(ctx context.Context, docID, query string, k int) (*domain.SearchResponse, error) {
	var resp *domain.SearchResponse
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.deps.Retrieve.Search(ctx, docID, query, k)
		return err
	})
	return resp, err
}

func (s *Server) answer(ctx context.Context, question string, results []domain.SearchResult) (*domain.Answer, error) {
	var answer *domain.Answer
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = s.deps.Answer.Answer(ctx, question, results)
		return err
	})
	return answer, err
}

func (s *Server) kOrDefault(k *int) int {
	if k == nil {
		return s.topK
	}
	return *k
}
