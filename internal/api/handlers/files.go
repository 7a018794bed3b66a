// files.go — HTTP handlers файловых операций FileVault.
// Upload, List, Get metadata, Update metadata, Download, Delete.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/service"
)

// multipartMemory — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemory = 32 << 20 // 32 MB

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	files       *service.FileService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
// maxFileSize — лимит размера загружаемого файла (FV_MAX_FILE_SIZE).
func NewFilesHandler(files *service.FileService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:       files,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /files.
// Multipart form: file (обязательно). Имя и Content-Type берутся из part.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит на размер тела: превышение обрывает чтение
	// и отдаёт 413 вместо заполнения диска.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, "Ошибка парсинга multipart: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxFileSize))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record, err := h.files.Upload(r.Context(), header.Filename, contentType, file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(record))
}

// ListFiles обрабатывает GET /files.
// Возвращает все записи метаданных от новых к старым.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.files.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := struct {
		Files []fileResponse `json:"files"`
		Total int            `json:"total"`
	}{
		Files: make([]fileResponse, 0, len(records)),
		Total: len(records),
	}
	for _, rec := range records {
		resp.Files = append(resp.Files, toFileResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetFile обрабатывает GET /files/{file_id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.files.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(record))
}

// UpdateMetadata обрабатывает PUT /files/{file_id}/metadata.
// Тело: JSON-объект, заменяющий record_meta целиком.
func (h *FilesHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	var meta model.RecordMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		apierrors.ValidationError(w, "Тело запроса должно быть JSON-объектом: "+err.Error())
		return
	}

	record, err := h.files.UpdateMetadata(r.Context(), fileID, meta)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(record))
}

// DownloadFile обрабатывает GET /files/{file_id}/download.
// http.ServeContent обрабатывает Range requests (206), If-None-Match (304)
// и Content-Length автоматически.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	record, fullPath, err := h.files.ResolveForRead(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	file, err := h.files.OpenStored(fullPath)
	if err != nil {
		h.logger.Error("Файл не найден на диске",
			slog.String("file_id", fileID),
			slog.String("storage_path", record.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.NotFound(w, fmt.Sprintf("Файл %s не найден на диске", fileID))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		apierrors.StorageError(w, "Ошибка чтения файла")
		return
	}

	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	if record.Checksum != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", record.Checksum))
	}
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, record.Filename, stat.ModTime(), file)
}

// DeleteFile обрабатывает DELETE /files/{file_id}.
// Успешное удаление — 204 без тела.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), fileID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fileIDParam извлекает и валидирует file_id из URL.
// Синтаксически невалидный UUID заведомо не существует в реестре,
// поэтому отвечаем 404, как и на любой неизвестный id, не доводя
// запрос до ошибки разбора UUID на стороне PostgreSQL.
func (h *FilesHandler) fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := chi.URLParam(r, "file_id")
	if _, err := uuid.Parse(fileID); err != nil {
		apierrors.NotFound(w, "Файл не найден")
		return "", false
	}
	return fileID, true
}

// writeServiceError мапит ошибки сервисного слоя на HTTP-ответы.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrInvalidFilename):
		apierrors.InvalidFilename(w, err.Error())
	case errors.Is(err, service.ErrInvalidPath):
		apierrors.InvalidPath(w, "Путь хранения файла вне корня хранилища")
	case errors.Is(err, service.ErrStorage):
		apierrors.StorageError(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
