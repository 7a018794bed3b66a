package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/gofilevault/internal/api/handlers"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/server"
	"github.com/bigkaa/gofilevault/internal/service"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
	"github.com/bigkaa/gofilevault/internal/storage/pathguard"
)

// memRepo — in-memory реализация FileMetaRepository для HTTP-тестов.
type memRepo struct {
	records map[string]*model.FileRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]*model.FileRecord{}}
}

func (m *memRepo) Create(_ context.Context, rec *model.FileRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordMeta == nil {
		rec.RecordMeta = model.RecordMeta{}
	}
	if rec.MetadataVersion == 0 {
		rec.MetadataVersion = 1
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.records[rec.ID]; exists {
		return repository.ErrConflict
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*model.FileRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) List(_ context.Context) ([]*model.FileRecord, error) {
	out := make([]*model.FileRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memRepo) UpdateRecordMeta(_ context.Context, id string, meta model.RecordMeta) (*model.FileRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !repository.MetaEqual(rec.RecordMeta, meta) {
		rec.RecordMeta = meta
		rec.MetadataVersion++
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *memRepo) TouchAccess(_ context.Context, id string) error {
	rec, ok := m.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	rec.LastAccessed = &now
	rec.AccessCount++
	return nil
}

const testAPIKey = "test-api-key"

// newTestRouter собирает полный router поверх in-memory репозитория
// и t.TempDir в качестве корня хранилища.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	store, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("filestore.New() вернул ошибку: %v", err)
	}
	guard, err := pathguard.New(dir)
	if err != nil {
		t.Fatalf("pathguard.New() вернул ошибку: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewFileService(newMemRepo(), store, guard, nil, logger)

	filesHandler := handlers.NewFilesHandler(svc, 1<<20, logger)
	healthHandler := handlers.NewHealthHandler(nil)
	auth := middleware.NewAPIKeyAuth("X-API-Key", testAPIKey, logger)

	return server.NewRouter(logger, filesHandler, healthHandler, auth)
}

// uploadRequest формирует multipart-запрос загрузки файла.
func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

// doUpload загружает файл и возвращает его file_id.
func doUpload(t *testing.T, router http.Handler, filename, content string) string {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, filename, content))
	if rec.Code != http.StatusOK {
		t.Fatalf("загрузка %q: статус = %d, тело: %s", filename, rec.Code, rec.Body.String())
	}

	var resp struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("невалидный JSON ответа загрузки: %v", err)
	}
	return resp.FileID
}

func TestUploadFile(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "report.pdf", "содержимое отчёта"))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200, тело: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if resp["filename"] != "report.pdf" {
		t.Errorf("filename = %v, ожидалось report.pdf", resp["filename"])
	}
	if resp["status"] != "available" {
		t.Errorf("status = %v, ожидалось available", resp["status"])
	}
	if resp["metadata_version"] != float64(1) {
		t.Errorf("metadata_version = %v, ожидалось 1", resp["metadata_version"])
	}
	if resp["checksum_alg"] != "sha256" {
		t.Errorf("checksum_alg = %v, ожидалось sha256", resp["checksum_alg"])
	}
}

func TestUploadFile_MissingFilePart(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}

func TestFiles_Unauthorized(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("статус без ключа = %d, ожидался 403", rec.Code)
	}
}

func TestGetFile(t *testing.T) {
	router := newTestRouter(t)
	fileID := doUpload(t, router, "data.txt", "данные")

	req := httptest.NewRequest(http.MethodGet, "/files/"+fileID, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["file_id"] != fileID {
		t.Errorf("file_id = %v, ожидалось %v", resp["file_id"], fileID)
	}
}

func TestGetFile_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/files/"+uuid.New().String(), nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
}

func TestGetFile_InvalidID(t *testing.T) {
	router := newTestRouter(t)

	// Синтаксически невалидный id — такой же неизвестный, как и
	// несуществующий UUID: сервис отвечает 404
	req := httptest.NewRequest(http.MethodGet, "/files/not-a-uuid", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("NOT_FOUND")) {
		t.Errorf("тело без кода NOT_FOUND: %s", rec.Body.String())
	}
}

func TestUpdateMetadata(t *testing.T) {
	router := newTestRouter(t)
	fileID := doUpload(t, router, "tagged.bin", "x")

	body := bytes.NewBufferString(`{"owner":"alice","project":"vault"}`)
	req := httptest.NewRequest(http.MethodPut, "/files/"+fileID+"/metadata", body)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200, тело: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["metadata_version"] != float64(2) {
		t.Errorf("metadata_version = %v, ожидалось 2", resp["metadata_version"])
	}
	meta, _ := resp["record_meta"].(map[string]any)
	if meta["owner"] != "alice" {
		t.Errorf("record_meta.owner = %v, ожидалось alice", meta["owner"])
	}
}

func TestDownloadFile(t *testing.T) {
	router := newTestRouter(t)
	content := "скачиваемое содержимое"
	fileID := doUpload(t, router, "download.txt", content)

	req := httptest.NewRequest(http.MethodGet, "/files/"+fileID+"/download", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	if rec.Body.String() != content {
		t.Errorf("тело = %q, ожидалось %q", rec.Body.String(), content)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="download.txt"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag не установлен")
	}
}

func TestDeleteFile(t *testing.T) {
	router := newTestRouter(t)
	fileID := doUpload(t, router, "temp.txt", "x")

	req := httptest.NewRequest(http.MethodDelete, "/files/"+fileID, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("статус = %d, ожидался 204", rec.Code)
	}

	// Повторное удаление — 404
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/files/"+fileID, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторное удаление: статус = %d, ожидался 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	// Health доступен без API-ключа
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, ожидалось ok", resp["status"])
	}
}

func TestHealthReady_NoChecker(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Без инициализированного checker readiness должен отдавать 503
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("статус = %d, ожидался 503", rec.Code)
	}
}
