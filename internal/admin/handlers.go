// Package admin exposes the HTTP API for managing stored schema sets and
// the network secret. It is the only writer to the schema store and flushes
// the validation cache after every mutation.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

// SchemaStore defines the schema persistence operations required by the
// admin API.
type SchemaStore interface {
	Save(ctx context.Context, gameType string, set validation.SchemaSet) error
	Delete(ctx context.Context, gameType string) error
	ListGameTypes(ctx context.Context) ([]string, error)
}

// SecretStore defines the secret rotation operation required by the admin
// API.
type SecretStore interface {
	SetNetworkSecret(ctx context.Context, secret string) error
}

// Handler serves the admin routes. Every request must carry a bearer token
// matching the configured bcrypt hash.
type Handler struct {
	schemas   SchemaStore
	secrets   SecretStore
	cache     *validation.Cache
	tokenHash string
	logger    *zap.Logger
	mux       *http.ServeMux
}

// NewHandler creates the admin Handler.
//
// Precondition: schemas, secrets, cache and logger must be non-nil;
// tokenHash must be a bcrypt hash.
func NewHandler(schemas SchemaStore, secrets SecretStore, cache *validation.Cache, tokenHash string, logger *zap.Logger) *Handler {
	h := &Handler{
		schemas:   schemas,
		secrets:   secrets,
		cache:     cache,
		tokenHash: tokenHash,
		logger:    logger,
		mux:       http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /api/schemas", h.listSchemas)
	h.mux.HandleFunc("PUT /api/schemas/{gameType}", h.putSchema)
	h.mux.HandleFunc("DELETE /api/schemas/{gameType}", h.deleteSchema)
	h.mux.HandleFunc("PUT /api/secret", h.putSecret)

	return h
}

// ServeHTTP authenticates the request and routes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.tokenHash), []byte(token)) == nil
}

type schemaUpload struct {
	Init   string `json:"init"`
	Action string `json:"action"`
	End    string `json:"end"`
}

// putSchema validates that all three documents compile, upserts the set,
// and flushes the validation cache.
func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	gameType := r.PathValue("gameType")

	var upload schemaUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	set := validation.SchemaSet{Init: upload.Init, Action: upload.Action, End: upload.End}
	if err := set.Compile(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if err := h.schemas.Save(r.Context(), gameType, set); err != nil {
		h.logger.Error("saving schema set",
			zap.String("game_type", gameType),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	h.cache.Flush()

	h.logger.Info("schema set saved",
		zap.String("game_type", gameType),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	gameType := r.PathValue("gameType")

	if err := h.schemas.Delete(r.Context(), gameType); err != nil {
		if errors.Is(err, validation.ErrSchemaNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown game type"})
			return
		}
		h.logger.Error("deleting schema set",
			zap.String("game_type", gameType),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	h.cache.Flush()

	h.logger.Info("schema set deleted",
		zap.String("game_type", gameType),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	types, err := h.schemas.ListGameTypes(r.Context())
	if err != nil {
		h.logger.Error("listing game types", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	if types == nil {
		types = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"gameTypes": types})
}

func (h *Handler) putSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Secret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "secret must be non-empty"})
		return
	}

	if err := h.secrets.SetNetworkSecret(r.Context(), body.Secret); err != nil {
		h.logger.Error("rotating network secret", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}

	h.logger.Info("network secret rotated")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
