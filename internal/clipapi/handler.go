// Package clipapi provides HTTP handlers for the clip endpoints.
package clipapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/server"
	"github.com/HerbHall/cliphub/internal/services"
)

// Client-facing messages.
const (
	msgNotFound     = "Clip not found."
	msgInvalidID    = "Invalid clip id."
	msgInvalidField = "Field \"content\" must be a string."
	msgInternal     = "Internal server error."
)

// ClipRequest is the body accepted by create and update.
// @Description Request body for creating or replacing a clip.
type ClipRequest struct {
	Content *string `json:"content" example:"hello world"`
}

// Handler provides HTTP handlers for clip endpoints.
type Handler struct {
	clips  services.ClipRepository
	events *Hub
	logger *zap.Logger
}

// NewHandler creates a clip Handler. events may be nil, in which case the
// events endpoint is not registered.
func NewHandler(clips services.ClipRepository, events *Hub, logger *zap.Logger) *Handler {
	return &Handler{clips: clips, events: events, logger: logger}
}

// RegisterRoutes registers clip routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/clips", h.handleList)
	mux.HandleFunc("POST /api/clips", h.handleCreate)
	mux.HandleFunc("GET /api/clips/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/clips/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/clips/{id}", h.handleDelete)
	if h.events != nil {
		mux.Handle("GET /api/clips/events", h.events)
	}
}

// handleList returns all clips, newest first.
//
//	@Summary		List clips
//	@Description	Get every clip ordered by creation time, newest first.
//	@Tags			clips
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=[]models.Clip}
//	@Failure		500	{object}	server.Envelope
//	@Router			/clips [get]
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	clips, err := h.clips.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list clips", err)
		return
	}
	server.WriteSuccess(w, http.StatusOK, clips)
}

// handleGet returns one clip.
//
//	@Summary		Get clip
//	@Tags			clips
//	@Produce		json
//	@Param			id	path		int	true	"Clip ID"
//	@Success		200	{object}	server.Envelope{data=models.Clip}
//	@Failure		400	{object}	server.Envelope
//	@Failure		404	{object}	server.Envelope
//	@Router			/clips/{id} [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	clip, found, err := h.clips.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get clip", err)
		return
	}
	if !found {
		server.NotFound(w, msgNotFound)
		return
	}
	server.WriteSuccess(w, http.StatusOK, clip)
}

// handleCreate stores a new clip.
//
//	@Summary		Create clip
//	@Description	Normalize, validate and store new clip content.
//	@Tags			clips
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ClipRequest	true	"Clip content"
//	@Success		201		{object}	server.Envelope{data=models.Clip}
//	@Failure		400		{object}	server.Envelope	"Empty or oversized content"
//	@Failure		500		{object}	server.Envelope
//	@Router			/clips [post]
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeContent(r)
	if err != nil {
		server.BadRequest(w, msgInvalidField)
		return
	}
	clip, err := h.clips.Create(r.Context(), raw)
	if err != nil {
		h.writeMutationError(w, r, "create clip", err)
		return
	}
	server.WriteSuccess(w, http.StatusCreated, clip)
}

// handleUpdate replaces a clip's content.
//
//	@Summary		Update clip
//	@Tags			clips
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Clip ID"
//	@Param			request	body		ClipRequest	true	"New content"
//	@Success		200		{object}	server.Envelope{data=models.Clip}
//	@Failure		400		{object}	server.Envelope
//	@Failure		404		{object}	server.Envelope
//	@Router			/clips/{id} [put]
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	// The body is read before any storage work. A missing clip is still a
	// 404 whatever the body.
	raw, decodeErr := decodeContent(r)

	_, found, err := h.clips.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get clip", err)
		return
	}
	if !found {
		server.NotFound(w, msgNotFound)
		return
	}
	if decodeErr != nil {
		server.BadRequest(w, msgInvalidField)
		return
	}

	clip, found, err := h.clips.Update(r.Context(), id, raw)
	if err != nil {
		h.writeMutationError(w, r, "update clip", err)
		return
	}
	if !found {
		server.NotFound(w, msgNotFound)
		return
	}
	server.WriteSuccess(w, http.StatusOK, clip)
}

// handleDelete removes a clip.
//
//	@Summary		Delete clip
//	@Tags			clips
//	@Param			id	path	int	true	"Clip ID"
//	@Success		204
//	@Failure		404	{object}	server.Envelope
//	@Router			/clips/{id} [delete]
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	removed, err := h.clips.Delete(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "delete clip", err)
		return
	}
	if !removed {
		server.NotFound(w, msgNotFound)
		return
	}
	server.WriteSuccess(w, http.StatusNoContent, nil)
}

func (h *Handler) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		server.BadRequest(w, verr.Error())
		return
	}
	h.internalError(w, r, op, err)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed",
		zap.String("request_id", server.RequestIDFrom(r.Context())),
		zap.Error(err),
	)
	server.InternalError(w, msgInternal)
}

// parseID reads the {id} path value. Non-numeric ids get a 400.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		server.BadRequest(w, msgInvalidID)
		return 0, false
	}
	return id, true
}

// errContentType reports a content field of the wrong JSON type.
var errContentType = errors.New("content field is not a string")

// decodeContent reads the request body. A missing, empty or malformed body
// yields nil content, which validation rejects as empty. A content field of
// the wrong JSON type yields errContentType.
func decodeContent(r *http.Request) (*string, error) {
	var req ClipRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil, errors.Is(err, io.EOF):
	case errors.As(err, &typeErr) && typeErr.Field == "content":
		return nil, errContentType
	default:
		req.Content = nil
	}
	return req.Content, nil
}
