package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
)

// KVHandler manages the key/value store under /api/admin/kv. The store
// holds API keys and small operational settings consulted at startup, so
// listing masks values while a single-key GET returns the full value for
// editing.
type KVHandler struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

func NewKVHandler(kv interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kv:     kv,
		logger: logger,
	}
}

// ListKVHandler handles GET /api/admin/kv
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	pairs, err := h.kv.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		WriteDetail(w, http.StatusInternalServerError, "failed to list key/value pairs")
		return
	}

	items := make([]map[string]interface{}, len(pairs))
	for i, pair := range pairs {
		items[i] = map[string]interface{}{
			"key":         pair.Key,
			"value":       maskValue(pair.Value),
			"description": pair.Description,
			"created_at":  pair.CreatedAt,
			"updated_at":  pair.UpdatedAt,
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// GetKVHandler handles GET /api/admin/kv/{key}
func (h *KVHandler) GetKVHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pathKey(w, r)
	if !ok {
		return
	}

	pair, err := h.kv.GetPair(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteDetail(w, http.StatusNotFound, "key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to get key/value pair")
		WriteDetail(w, http.StatusInternalServerError, "failed to retrieve key/value pair")
		return
	}

	WriteJSON(w, http.StatusOK, pair)
}

// UpdateKVHandler handles PUT /api/admin/kv/{key}. Creates the key when
// missing; an empty value keeps the stored one so a description can be
// edited without re-entering a credential.
func (h *KVHandler) UpdateKVHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pathKey(w, r)
	if !ok {
		return
	}

	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	value := req.Value
	if value == "" {
		current, err := h.kv.GetPair(r.Context(), key)
		if err != nil {
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				WriteDetail(w, http.StatusBadRequest, "value is required for a new key")
				return
			}
			h.logger.Error().Err(err).Str("key", key).Msg("Failed to read current value")
			WriteDetail(w, http.StatusInternalServerError, "failed to retrieve current value")
			return
		}
		value = current.Value
	}

	created, err := h.kv.Upsert(r.Context(), key, value, req.Description)
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to upsert key/value pair")
		WriteDetail(w, http.StatusInternalServerError, "failed to upsert key/value pair")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.logger.Info().Str("key", key).Bool("created", created).Msg("Key/value pair saved")
	WriteJSON(w, status, map[string]interface{}{
		"key":     key,
		"created": created,
	})
}

// DeleteKVHandler handles DELETE /api/admin/kv/{key}
func (h *KVHandler) DeleteKVHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pathKey(w, r)
	if !ok {
		return
	}

	if err := h.kv.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteDetail(w, http.StatusNotFound, "key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key/value pair")
		WriteDetail(w, http.StatusInternalServerError, "failed to delete key/value pair")
		return
	}

	h.logger.Info().Str("key", key).Msg("Key/value pair deleted")
	WriteJSON(w, http.StatusOK, map[string]string{"key": key})
}

// pathKey extracts and decodes the key from /api/admin/kv/{key}
func (h *KVHandler) pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.QueryUnescape(PathSegment(r, 3))
	if err != nil {
		WriteDetail(w, http.StatusBadRequest, "invalid key encoding")
		return "", false
	}
	if key == "" {
		WriteDetail(w, http.StatusBadRequest, "missing key")
		return "", false
	}
	return key, true
}

// maskValue hides credential values in listings: short values mask
// entirely, longer ones keep the first and last four characters.
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
