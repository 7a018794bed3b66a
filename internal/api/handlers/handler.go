// handler.go — общие вспомогательные функции HTTP-обработчиков.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bigkaa/gofilevault/internal/domain/model"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// fileResponse — представление записи метаданных в API.
type fileResponse struct {
	FileID             string           `json:"file_id"`
	Filename           string           `json:"filename"`
	FilenameNormalized string           `json:"filename_normalized"`
	ContentType        string           `json:"content_type,omitempty"`
	Size               int64            `json:"size"`
	StorageBackend     string           `json:"storage_backend"`
	StoragePath        string           `json:"storage_path"`
	RecordMeta         model.RecordMeta `json:"record_meta"`
	Checksum           string           `json:"checksum,omitempty"`
	ChecksumAlg        string           `json:"checksum_alg,omitempty"`
	Status             string           `json:"status"`
	CreatedAt          string           `json:"created_at"`
	UploadedAt         *string          `json:"uploaded_at,omitempty"`
	LastAccessed       *string          `json:"last_accessed,omitempty"`
	AccessCount        int64            `json:"access_count"`
	MetadataVersion    int              `json:"metadata_version"`
}

// toFileResponse преобразует доменную модель в API-представление.
func toFileResponse(rec *model.FileRecord) fileResponse {
	resp := fileResponse{
		FileID:             rec.ID,
		Filename:           rec.Filename,
		FilenameNormalized: rec.FilenameNormalized,
		ContentType:        rec.ContentType,
		Size:               rec.Size,
		StorageBackend:     rec.StorageBackend,
		StoragePath:        rec.StoragePath,
		RecordMeta:         rec.RecordMeta,
		Checksum:           rec.Checksum,
		ChecksumAlg:        rec.ChecksumAlg,
		Status:             string(rec.Status),
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
		AccessCount:        rec.AccessCount,
		MetadataVersion:    rec.MetadataVersion,
	}
	if resp.RecordMeta == nil {
		resp.RecordMeta = model.RecordMeta{}
	}
	if rec.UploadedAt != nil {
		s := rec.UploadedAt.UTC().Format(time.RFC3339)
		resp.UploadedAt = &s
	}
	if rec.LastAccessed != nil {
		s := rec.LastAccessed.UTC().Format(time.RFC3339)
		resp.LastAccessed = &s
	}
	return resp
}
