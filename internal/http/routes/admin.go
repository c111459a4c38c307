package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonwraymond/apicache/auth"
	"github.com/jonwraymond/apicache/internal/jobs"
	"github.com/jonwraymond/apicache/observe"
)

const maxAdminBody = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// InvalidateRequest is the body of POST /api/cache/invalidate.
type InvalidateRequest struct {
	Tags  []string `json:"tags" validate:"required,min=1,max=64,dive,required,max=128"`
	Async bool     `json:"async"`
}

// InvalidateResponse reports an invalidation. Deleted is set for synchronous
// requests, TaskID and Queue for queued ones.
type InvalidateResponse struct {
	ID      string   `json:"id"`
	Tags    []string `json:"tags"`
	Deleted *int     `json:"deleted,omitempty"`
	TaskID  string   `json:"task_id,omitempty"`
	Queue   string   `json:"queue,omitempty"`
}

// TagMembersResponse lists the keys under a tag.
type TagMembersResponse struct {
	Tag  string   `json:"tag"`
	Keys []string `json:"keys"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InvalidateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for i, t := range req.Tags {
		req.Tags[i] = strings.TrimSpace(t)
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "tags must be a non-empty list of non-empty strings")
		return
	}

	id := uuid.NewString()
	principal := auth.PrincipalFromContext(ctx)
	log := s.log.With(
		observe.Field{Key: "request_id", Value: id},
		observe.Field{Key: "principal", Value: principal},
	)

	if req.Async {
		if s.enqueuer == nil {
			writeError(w, http.StatusServiceUnavailable, "async invalidation unavailable")
			return
		}
		task, err := jobs.NewInvalidateTagsTask(jobs.InvalidateTagsPayload{
			RequestID:   id,
			Tags:        req.Tags,
			RequestedBy: principal,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not build task")
			return
		}
		info, err := s.enqueuer.EnqueueContext(ctx, task)
		if err != nil {
			log.Error(ctx, "enqueue invalidation failed", observe.Field{Key: "error", Value: err})
			writeError(w, http.StatusServiceUnavailable, "could not enqueue invalidation")
			return
		}
		log.Info(ctx, "invalidation enqueued",
			observe.Field{Key: "tags", Value: req.Tags},
			observe.Field{Key: "task_id", Value: info.ID},
		)
		writeJSON(w, http.StatusAccepted, InvalidateResponse{
			ID:     id,
			Tags:   req.Tags,
			TaskID: info.ID,
			Queue:  info.Queue,
		})
		return
	}

	deleted, err := s.tags.InvalidateTags(ctx, req.Tags)
	if err != nil {
		log.Error(ctx, "invalidate tags failed", observe.Field{Key: "error", Value: err})
		writeError(w, http.StatusInternalServerError, "invalidation failed")
		return
	}
	log.Info(ctx, "tags invalidated",
		observe.Field{Key: "tags", Value: req.Tags},
		observe.Field{Key: "deleted", Value: deleted},
	)
	writeJSON(w, http.StatusOK, InvalidateResponse{ID: id, Tags: req.Tags, Deleted: &deleted})
}

func (s *Server) handleTagMembers(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	keys, err := s.tags.Members(r.Context(), tag)
	if err != nil {
		s.log.Error(r.Context(), "read tag members failed",
			observe.Field{Key: "tag", Value: tag},
			observe.Field{Key: "error", Value: err},
		)
		writeError(w, http.StatusInternalServerError, "could not read tag")
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, TagMembersResponse{Tag: tag, Keys: keys})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
