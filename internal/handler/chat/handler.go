package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	botservice "github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/chatmode"
	botmodel "github.com/parleyhq/parley/internal/model/bot"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/pkg/utils"
)

// Handler exposes the session-preparation REST surface: session CRUD plus
// provider and mode discovery.
type Handler struct {
	store    *session.Store
	bots     *botservice.Registry
	sessions *orchestrator.SessionRegistry
}

// New creates the chat handler.
func New(store *session.Store, bots *botservice.Registry, sessions *orchestrator.SessionRegistry) *Handler {
	return &Handler{store: store, bots: bots, sessions: sessions}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Delete("/session/{sessionID}", h.handleDeleteSession)
	r.Get("/providers", h.handleListProviders)
	r.Get("/modes", h.handleListModes)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string              `json:"userId"`
		ModeID string              `json:"modeId"`
		Bots   []botmodel.Snapshot `json:"bots"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	info, err := chatmode.InfoFor(payload.ModeID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "unknown chat mode")
		return
	}
	if len(payload.Bots) < info.MinBots || len(payload.Bots) > info.MaxBots {
		utils.RespondError(w, http.StatusBadRequest,
			fmt.Sprintf("mode %s requires between %d and %d bots", info.ModeID, info.MinBots, info.MaxBots))
		return
	}

	// Resolve bots before persisting anything: a session must never be
	// created with unresolvable bots.
	bots := make([]*botservice.Bot, 0, len(payload.Bots))
	snapshots := make([]botmodel.Snapshot, 0, len(payload.Bots))
	for _, snap := range payload.Bots {
		b, err := h.bots.CreateBot(r.Context(), snap)
		if err != nil {
			if errors.Is(err, botservice.ErrUnsupportedProvider) {
				utils.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}
			utils.RespondError(w, http.StatusInternalServerError, "failed to create bot")
			return
		}
		bots = append(bots, b)
		snapshots = append(snapshots, b.Snapshot())
	}

	sess, err := h.store.Create(r.Context(), payload.UserID, payload.ModeID, snapshots)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.sessions.Create(r.Context(), sess.ID, bots, payload.ModeID); err != nil {
		h.store.Delete(r.Context(), sess.ID)
		utils.RespondError(w, http.StatusInternalServerError, "failed to initialize session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.store.Get(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	h.sessions.Remove(sessionID)
	h.store.Delete(r.Context(), sessionID)

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.bots.ProviderInfos(r.Context()))
}

func (h *Handler) handleListModes(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, chatmode.AvailableModes())
}
