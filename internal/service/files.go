// files.go — сервис хранения файлов: оркестрация загрузки, чтения,
// обновления метаданных и удаления.
//
// Порядок операций при загрузке: сначала байты на диск, затем запись
// метаданных в БД. При ошибке БД файл на диске удаляется — осиротевших
// записей метаданных не остаётся.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
	"github.com/bigkaa/gofilevault/internal/storage/keygen"
	"github.com/bigkaa/gofilevault/internal/storage/pathguard"
)

// FileService — сервис хранения файлов.
// Координирует генерацию ключей, запись на диск, валидацию путей
// и работу с метаданными в PostgreSQL.
type FileService struct {
	repo   repository.FileMetaRepository
	store  *filestore.FileStore
	guard  *pathguard.Guard
	cache  *CacheService
	logger *slog.Logger
}

// NewFileService создаёт сервис хранения файлов.
// cache может быть nil — кэширование тогда отключено.
func NewFileService(
	repo repository.FileMetaRepository,
	store *filestore.FileStore,
	guard *pathguard.Guard,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		repo:   repo,
		store:  store,
		guard:  guard,
		cache:  cache,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет файл на диск и создаёт запись метаданных.
// filename — оригинальное имя файла из запроса, contentType — MIME-тип,
// reader — содержимое файла.
//
// Имя файла валидируется ДО записи на диск: path traversal
// и многосегментные имена отклоняются с ErrInvalidFilename.
func (s *FileService) Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*model.FileRecord, error) {
	storageKey, err := keygen.NewKey(filename)
	if err != nil {
		if errors.Is(err, keygen.ErrInvalidFilename) {
			middleware.OperationsTotal.WithLabelValues("upload", "invalid_filename").Inc()
			return nil, fmt.Errorf("%w: %s", ErrInvalidFilename, filename)
		}
		return nil, fmt.Errorf("генерация ключа хранения: %w", err)
	}

	result, err := s.store.SaveFile(reader, storageKey)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "storage_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	now := time.Now().UTC()
	record := &model.FileRecord{
		ContentType: contentType,
		Size:        result.Size,
		StoragePath: storageKey,
		Checksum:    result.Checksum,
		ChecksumAlg: model.ChecksumAlgSHA256,
		Status:      model.StatusAvailable,
		UploadedAt:  &now,
	}
	record.SetFilename(filename)

	if err := s.repo.Create(ctx, record); err != nil {
		// Запись метаданных не удалась — подчищаем байты, чтобы не
		// оставлять файлы, на которые ничто не ссылается.
		if fullPath, pErr := s.guard.Resolve(storageKey); pErr == nil {
			if rmErr := s.store.Remove(fullPath); rmErr != nil {
				s.logger.Error("Не удалось удалить файл после ошибки БД",
					slog.String("storage_path", storageKey),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		middleware.OperationsTotal.WithLabelValues("upload", "db_error").Inc()
		return nil, fmt.Errorf("создание записи метаданных: %w", err)
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	s.logger.Info("Файл загружен",
		slog.String("file_id", record.ID),
		slog.String("filename", record.Filename),
		slog.Int64("size", record.Size),
		slog.String("checksum", record.Checksum),
	)

	return record, nil
}

// List возвращает все записи метаданных, отсортированные от новых к старым.
func (s *FileService) List(ctx context.Context) ([]*model.FileRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	return records, nil
}

// Get возвращает запись метаданных по ID.
// Сначала проверяет LRU-кэш, при промахе идёт в БД.
func (s *FileService) Get(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if s.cache != nil {
		if record, ok := s.cache.Get(fileID); ok {
			return record, nil
		}
	}

	record, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(fileID, record)
	}
	return record, nil
}

// ResolveForRead возвращает запись метаданных и абсолютный путь к файлу
// на диске для отдачи содержимого. Путь проходит через pathguard:
// storage_path, выходящий за пределы корня, отклоняется с ErrInvalidPath
// даже если запись в БД существует.
//
// Обновление last_accessed/access_count выполняется best-effort:
// ошибка учёта доступа не должна ломать скачивание.
func (s *FileService) ResolveForRead(ctx context.Context, fileID string) (*model.FileRecord, string, error) {
	record, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, "", err
	}

	fullPath, err := s.guard.Resolve(record.StoragePath)
	if err != nil {
		if errors.Is(err, pathguard.ErrInvalidPath) {
			middleware.OperationsTotal.WithLabelValues("download", "invalid_path").Inc()
			s.logger.Error("storage_path выходит за пределы корня хранилища",
				slog.String("file_id", record.ID),
				slog.String("storage_path", record.StoragePath),
			)
			return nil, "", ErrInvalidPath
		}
		return nil, "", fmt.Errorf("валидация пути хранения: %w", err)
	}

	if err := s.repo.TouchAccess(ctx, record.ID); err != nil {
		s.logger.Warn("Не удалось обновить учёт доступа",
			slog.String("file_id", record.ID),
			slog.String("error", err.Error()),
		)
	} else if s.cache != nil {
		// access_count в кэше устарел — сбрасываем запись
		s.cache.Delete(record.ID)
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	return record, fullPath, nil
}

// OpenStored открывает файл по абсолютному пути, полученному
// от ResolveForRead. Вызывающий код обязан закрыть файл.
func (s *FileService) OpenStored(fullPath string) (*os.File, error) {
	return s.store.Open(fullPath)
}

// UpdateMetadata заменяет record_meta файла целиком.
// metadata_version увеличивается только при фактическом изменении
// содержимого (структурное сравнение на стороне репозитория).
func (s *FileService) UpdateMetadata(ctx context.Context, fileID string, meta model.RecordMeta) (*model.FileRecord, error) {
	record, err := s.repo.UpdateRecordMeta(ctx, fileID, meta)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление метаданных: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(fileID)
	}

	middleware.OperationsTotal.WithLabelValues("update_meta", "success").Inc()
	s.logger.Info("Метаданные обновлены",
		slog.String("file_id", fileID),
		slog.Int("metadata_version", record.MetadataVersion),
	)

	return record, nil
}

// Delete удаляет файл: сначала байты с диска (отсутствие файла не
// ошибка), затем запись метаданных. Если storage_path записи выходит
// за пределы корня хранилища, возвращает ErrInvalidPath, и запись
// остаётся нетронутой для разбирательства оператором.
// Возвращает ErrNotFound, если записи не было.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	record, err := s.Get(ctx, fileID)
	if err != nil {
		return err
	}

	// Путь валидируется перед удалением: не трогаем файлы вне корня
	// и не удаляем запись с испорченным путём.
	fullPath, err := s.guard.Resolve(record.StoragePath)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "invalid_path").Inc()
		s.logger.Error("storage_path выходит за пределы корня, удаление отклонено",
			slog.String("file_id", fileID),
			slog.String("storage_path", record.StoragePath),
		)
		return ErrInvalidPath
	}

	if rmErr := s.store.Remove(fullPath); rmErr != nil {
		s.logger.Warn("Не удалось удалить файл с диска",
			slog.String("file_id", fileID),
			slog.String("error", rmErr.Error()),
		)
	}

	// Метаданные удаляются после байтов: оставшаяся запись без байтов
	// бесполезна, а байты без записи подчистит оператор.
	deleted, err := s.repo.Delete(ctx, fileID)
	if err != nil {
		return fmt.Errorf("удаление записи метаданных: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	if s.cache != nil {
		s.cache.Delete(fileID)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("filename", record.Filename),
	)

	return nil
}
