package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/portfoliotracker/src/database"
	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/model"
	"github.com/username/portfoliotracker/src/security"
	"github.com/username/portfoliotracker/src/utils"
)

type APIKeyHandler struct {
	authService *security.AuthService
}

func NewAPIKeyHandler(authService *security.AuthService) *APIKeyHandler {
	return &APIKeyHandler{authService: authService}
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

type createAPIKeyResponse struct {
	model.APIKey
	// Key is the plaintext secret, returned only in this response.
	Key string `json:"key"`
}

func (h *APIKeyHandler) HandleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.SendJSONError(w, "A key name is required", http.StatusBadRequest)
		return
	}

	key, prefix, err := h.authService.GenerateAPIKey()
	if err != nil {
		logger.L.Error("Failed to generate API key", "error", err)
		utils.SendJSONError(w, "Failed to create API key", http.StatusInternalServerError)
		return
	}

	record := &model.APIKey{
		UserID:    userID,
		Name:      req.Name,
		KeyHash:   model.HashAPIKey(key),
		KeyPrefix: prefix,
	}
	if err := model.CreateAPIKey(database.DB, record); err != nil {
		logger.L.Error("Failed to store API key", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create API key", http.StatusInternalServerError)
		return
	}

	logger.L.Info("API key created", "userID", userID, "keyID", record.ID, "name", record.Name)
	utils.SendJSON(w, createAPIKeyResponse{APIKey: *record, Key: key}, http.StatusCreated)
}

func (h *APIKeyHandler) HandleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	keys, err := model.ListAPIKeysByUser(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to list API keys", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to list API keys", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, keys, http.StatusOK)
}

func (h *APIKeyHandler) HandleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	keyID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid key id", http.StatusBadRequest)
		return
	}

	if err := model.DeleteAPIKey(database.DB, userID, keyID); err != nil {
		utils.SendJSONError(w, "API key not found", http.StatusNotFound)
		return
	}
	logger.L.Info("API key deleted", "userID", userID, "keyID", keyID)
	utils.SendJSON(w, map[string]string{"message": "deleted"}, http.StatusOK)
}
