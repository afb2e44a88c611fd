package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/embergate/embergate/internal/backend"
	"github.com/embergate/embergate/internal/keypair"
	"github.com/embergate/embergate/internal/mapper"
)

type handlers struct {
	registry *backend.Registry
	keys     *keypair.KeyPair
	meta     ServerMeta
	logger   *slog.Logger
}

// noContent collapses any core-level failure (unknown server_id,
// upstream failure) to HTTP 204.
func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) lookupBackend(w http.ResponseWriter, r *http.Request) (*backend.Backend, bool) {
	serverID := mux.Vars(r)["server_id"]
	b, ok := h.registry.Get(serverID)
	if !ok {
		noContent(w)
		return nil, false
	}
	return b, true
}

// hasJoined implements GET /{server_id}/sessionserver/session/minecraft/hasJoined.
// It always emits an unsigned profile, matching the original's
// behaviour of ignoring any signed/unsigned concept on this path.
func (h *handlers) hasJoined(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBackend(w, r)
	if !ok {
		return
	}

	username := r.URL.Query().Get("username")
	serverID := r.URL.Query().Get("serverId")
	if username == "" || serverID == "" {
		noContent(w)
		return
	}

	ctx := r.Context()

	checkResp, err := b.Client.CheckServer(ctx, username, serverID, false, false)
	if err != nil {
		h.logger.Debug("hasJoined: checkServer failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	profileResp, err := b.Client.GetProfileByUUID(ctx, checkResp.UUID)
	if err != nil {
		h.logger.Debug("hasJoined: getProfileByUUID failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	profile, err := mapper.Map(profileResp.PlayerProfile, h.keys.Private, sinceEpoch(), false)
	if err != nil {
		h.logger.Warn("hasJoined: mapping profile failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	writeJSON(w, profile)
}

// profileByUUID implements
// GET /{server_id}/sessionserver/session/minecraft/profile/{uuid}.
func (h *handlers) profileByUUID(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBackend(w, r)
	if !ok {
		return
	}

	playerID, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		noContent(w)
		return
	}

	unsigned := r.URL.Query().Get("unsigned") == "true"

	ctx := r.Context()
	profileResp, err := b.Client.GetProfileByUUID(ctx, playerID)
	if err != nil {
		h.logger.Debug("profileByUUID: getProfileByUUID failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	profile, err := mapper.Map(profileResp.PlayerProfile, h.keys.Private, sinceEpoch(), !unsigned)
	if err != nil {
		h.logger.Warn("profileByUUID: mapping profile failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	writeJSON(w, profile)
}

// batchProfiles implements POST /{server_id}/api/profiles/minecraft.
// The response never carries textures, matching the original.
func (h *handlers) batchProfiles(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBackend(w, r)
	if !ok {
		return
	}

	var usernames []string
	if err := json.NewDecoder(r.Body).Decode(&usernames); err != nil {
		noContent(w)
		return
	}

	batchResp, err := b.Client.BatchProfilesByUsernames(r.Context(), usernames)
	if err != nil {
		h.logger.Debug("batchProfiles: upstream call failed", "backend", b.Descriptor.Name, "error", err)
		noContent(w)
		return
	}

	profiles := make([]mapper.Profile, 0, len(batchResp.PlayerProfiles))
	for _, p := range batchResp.PlayerProfiles {
		if p == nil {
			continue
		}
		profiles = append(profiles, mapper.Profile{
			ID:         hex.EncodeToString(p.UUID[:]),
			Name:       p.Username,
			Properties: []mapper.Property{},
		})
	}

	writeJSON(w, profiles)
}

// root implements GET /{server_id}/.
func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBackend(w, r)
	if !ok {
		return
	}

	writeJSON(w, rootResponse{
		Meta: metaResponse{
			ServerName:            h.meta.Name,
			ImplementationName:    h.meta.ImplementationName,
			ImplementationVersion: h.meta.ImplementationVersion,
		},
		SkinDomains:       b.Descriptor.Assets,
		SignaturePublicKey: h.keys.PublicPEM,
	})
}

type rootResponse struct {
	Meta               metaResponse `json:"meta"`
	SkinDomains        []string     `json:"skinDomains"`
	SignaturePublicKey string       `json:"signaturePublicKey"`
}

type metaResponse struct {
	ServerName            string `json:"serverName,omitempty"`
	ImplementationName    string `json:"implementationName,omitempty"`
	ImplementationVersion string `json:"implementationVersion,omitempty"`
}

func sinceEpoch() time.Duration {
	return time.Duration(time.Now().UnixNano())
}
