package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/infra/logging"
	"invoice-ai-extraction/internal/infra/redis"
	"invoice-ai-extraction/internal/usecase"
)

const maxUploadBytes = 64 << 20

type jobView struct {
	JobID              string `json:"jobId"`
	Status             string `json:"status"`
	Progress           int    `json:"progress"`
	DocumentsProcessed int    `json:"documentsProcessed"`
	TotalRecords       int    `json:"totalRecords"`
	Message            string `json:"message"`
	CreatedAt          string `json:"createdAt"`
	UpdatedAt          string `json:"updatedAt"`
}

type resultView struct {
	ID           string `json:"id"`
	DocID        string `json:"docId"`
	DocName      string `json:"docName"`
	Page         int    `json:"page"`
	OriginalTerm string `json:"originalTerm"`
	Canonical    string `json:"canonical"`
	Value        string `json:"value"`
	Confidence   int    `json:"confidence"`
	Evidence     string `json:"evidence"`
}

type synonymView struct {
	ID        string `json:"id"`
	Term      string `json:"term"`
	Canonical string `json:"canonical"`
	CreatedAt string `json:"createdAt"`
}

type chatExchangeView struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"createdAt"`
}

func toJobView(j *model.Job) jobView {
	return jobView{
		JobID:              j.ID,
		Status:             string(j.Status),
		Progress:           j.Progress,
		DocumentsProcessed: j.DocumentsProcessed,
		TotalRecords:       j.TotalRecords,
		Message:            j.Message,
		CreatedAt:          j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          j.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toResultView(r *model.Result) resultView {
	return resultView{
		ID:           r.ID,
		DocID:        r.DocID,
		DocName:      r.DocName,
		Page:         r.Page,
		OriginalTerm: r.OriginalTerm,
		Canonical:    r.Canonical,
		Value:        r.Value,
		Confidence:   r.Confidence,
		Evidence:     r.Evidence,
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
		return
	}
	var uploads []usecase.Upload
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				writeError(w, fmt.Errorf("%w: cannot open %q", domain.ErrInvalidArgument, fh.Filename))
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, fmt.Errorf("%w: cannot read %q", domain.ErrInvalidArgument, fh.Filename))
				return
			}
			uploads = append(uploads, usecase.Upload{Name: fh.Filename, Data: data})
		}
	}

	job, err := s.ingest.CreateJob(r.Context(), uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingest.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	rows, err := s.pub.List(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]resultView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toResultView(row))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleStream serves the job's results over SSE: the full snapshot first,
// then live rows with no gap and no duplicate in between.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	ctx := logging.WithJobID(r.Context(), jobID)
	log := logging.With(ctx, s.log)

	snapshot, sub, err := s.pub.Subscribe(ctx, jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, row := range snapshot {
		if err := writeEvent(w, row); err != nil {
			return
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case row, open := <-sub.C():
			if !open {
				log.Debug().Msg("stream subscription closed")
				return
			}
			if err := writeEvent(w, row); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, row *model.Result) error {
	data, err := json.Marshal(toResultView(row))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	return err
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	JobID               string     `json:"jobId"`
	Question            string     `json:"question"`
	ConversationHistory []chatTurn `json:"conversationHistory"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), redis.ChatKey(clientKey(r)), s.chatLimit, s.chatWindow)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable, letting request through")
		} else if !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
		return
	}
	history := make([]usecase.ChatTurn, 0, len(req.ConversationHistory))
	for _, turn := range req.ConversationHistory {
		history = append(history, usecase.ChatTurn{Role: turn.Role, Content: turn.Content})
	}
	answer, err := s.query.Answer(r.Context(), req.JobID, req.Question, history)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	exchanges, err := s.query.History(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]chatExchangeView, 0, len(exchanges))
	for _, ex := range exchanges {
		views = append(views, chatExchangeView{
			ID:        ex.ID,
			Question:  ex.Question,
			Answer:    ex.Answer,
			CreatedAt: ex.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.ingest.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toJobView(j))
	}
	writeJSON(w, http.StatusOK, views)
}

type synonymRequest struct {
	Term      string `json:"term"`
	Canonical string `json:"canonical"`
}

func (s *Server) handleListSynonyms(w http.ResponseWriter, r *http.Request) {
	synonyms, err := s.synonyms.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]synonymView, 0, len(synonyms))
	for _, syn := range synonyms {
		views = append(views, toSynonymView(syn))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSynonym(w http.ResponseWriter, r *http.Request) {
	var req synonymRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
		return
	}
	syn, err := s.synonyms.Upsert(r.Context(), req.Term, req.Canonical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSynonymView(syn))
}

func (s *Server) handleUpdateSynonym(w http.ResponseWriter, r *http.Request) {
	var req synonymRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument))
		return
	}
	syn, err := s.synonyms.Update(r.Context(), chi.URLParam(r, "id"), req.Term, req.Canonical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSynonymView(syn))
}

func (s *Server) handleDeleteSynonym(w http.ResponseWriter, r *http.Request) {
	if err := s.synonyms.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toSynonymView(s *model.Synonym) synonymView {
	return synonymView{
		ID:        s.ID,
		Term:      s.Term,
		Canonical: s.Canonical,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrExtractionService):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
