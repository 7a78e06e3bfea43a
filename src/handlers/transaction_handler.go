package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/portfoliotracker/src/config"
	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/models"
	"github.com/username/portfoliotracker/src/parsers"
	"github.com/username/portfoliotracker/src/services"
	"github.com/username/portfoliotracker/src/utils"
)

type TransactionHandler struct {
	txService  *services.TransactionService
	taxService *services.TaxService
	csvParser  *parsers.CSVParser
}

func NewTransactionHandler(txService *services.TransactionService, taxService *services.TaxService, csvParser *parsers.CSVParser) *TransactionHandler {
	return &TransactionHandler{
		txService:  txService,
		taxService: taxService,
		csvParser:  csvParser,
	}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	txs, err := h.txService.ListByUser(userID)
	if err != nil {
		logger.L.Error("Failed to list transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, txs, http.StatusOK)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if tx.Kind == "" || tx.ToAsset == "" || tx.Timestamp.IsZero() {
		utils.SendJSONError(w, "type, datetime and toAsset are required", http.StatusBadRequest)
		return
	}

	if err := h.txService.Create(userID, &tx); err != nil {
		logger.L.Error("Failed to create transaction", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}
	h.taxService.InvalidateUserCache(userID)
	utils.SendJSON(w, tx, http.StatusCreated)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	if err := h.txService.Delete(userID, txID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete transaction", "userID", userID, "txID", txID, "error", err)
		utils.SendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}
	h.taxService.InvalidateUserCache(userID)
	utils.SendJSON(w, map[string]string{"message": "deleted"}, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.txService.DeleteAll(userID)
	if err != nil {
		logger.L.Error("Failed to delete transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}
	h.taxService.InvalidateUserCache(userID)
	utils.SendJSON(w, map[string]int64{"deleted": count}, http.StatusOK)
}

// HandleImportTransactions accepts a multipart CSV upload (field "file") and
// appends the parsed transactions to the user's history.
func (h *TransactionHandler) HandleImportTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Upload too large or malformed", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "A CSV file is required in the 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	txs, err := h.csvParser.Parse(file)
	if err != nil {
		logger.L.Warn("CSV import failed to parse", "userID", userID, "filename", header.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(txs) == 0 {
		utils.SendJSONError(w, "CSV contained no transactions", http.StatusBadRequest)
		return
	}

	count, err := h.txService.CreateBatch(userID, txs)
	if err != nil {
		logger.L.Error("CSV import failed to persist", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to import transactions", http.StatusInternalServerError)
		return
	}
	h.taxService.InvalidateUserCache(userID)
	utils.SendJSON(w, map[string]int{"imported": count}, http.StatusCreated)
}
