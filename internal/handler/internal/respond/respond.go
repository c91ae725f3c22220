package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	CODE_INTERNAL_ERROR = iota + 1
	CODE_INVALID_JSON
	CODE_NOT_FOUND
	CODE_CHAPTER_NOT_FOUND
	CODE_INVALID_CHAPTER
	CODE_PAGE_NOT_FOUND
	CODE_INVALID_PAGE
	CODE_INVALID_POSITION
	CODE_INVALID_FILE
	CODE_FILE_TOO_BIG
	CODE_INVALID_URL
	CODE_IMPORT_IN_PROGRESS
	CODE_IMPORT_FAILED
	CODE_IMPORT_CANCELLED
)

type Error struct {
	Code int    `json:"code"`
	Text string `json:"text,omitempty"`
}

func ErrorWithCode(w http.ResponseWriter, httpCode, appCode int) {
	JSONWithStatus(w, httpCode, Error{Code: appCode})
}

func ErrorWithText(w http.ResponseWriter, httpCode, appCode int, errText string) {
	JSONWithStatus(w, httpCode, Error{Code: appCode, Text: errText})
}

func JSON(w http.ResponseWriter, v interface{}) {
	JSONWithStatus(w, http.StatusOK, v)
}

func JSONWithStatus(w http.ResponseWriter, httpCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// Bytes writes a raw payload such as a chapter or an image.
func Bytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("failed to write response", zap.Error(err))
	}
}
