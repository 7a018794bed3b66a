// filemeta.go — CRUD для таблицы file_meta (реестр загруженных файлов).
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/gofilevault/internal/domain/model"
)

// fileMetaColumns — список столбцов таблицы file_meta для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileMetaColumns = `id, filename, filename_normalized, content_type, size,
	storage_backend, storage_path, record_meta, checksum, checksum_alg,
	status, encrypted, encryption_key_id, created_at, uploaded_at,
	last_accessed, access_count, retention_until, deleted_at, metadata_version`

// FileMetaRepository — интерфейс доступа к метаданным файлов.
type FileMetaRepository interface {
	// Create создаёт новую запись. Назначает ID и CreatedAt, если не заданы.
	// Две записи с одним ID невозможны (ErrConflict).
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает запись по UUID или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// List возвращает все записи, новые первыми (ORDER BY created_at DESC).
	// Порядок — часть контракта: вызывающий код отображает его напрямую.
	List(ctx context.Context) ([]*model.FileRecord, error)
	// UpdateRecordMeta заменяет record_meta целиком. Если новое значение
	// структурно равно текущему — no-op (версия не меняется), иначе
	// metadata_version увеличивается ровно на 1. Сериализация конкурентных
	// обновлений одного ID — через SELECT ... FOR UPDATE.
	UpdateRecordMeta(ctx context.Context, id string, meta model.RecordMeta) (*model.FileRecord, error)
	// Delete удаляет запись. Возвращает true, если запись существовала.
	// Идемпотентна: повторное удаление возвращает (false, nil).
	Delete(ctx context.Context, id string) (bool, error)
	// TouchAccess обновляет last_accessed и инкрементирует access_count.
	TouchAccess(ctx context.Context, id string) error
}

// fileMetaRepo — реализация FileMetaRepository через pgx.
// Обычные запросы идут через DBTX, UpdateRecordMeta открывает
// собственную транзакцию для блокировки строки.
type fileMetaRepo struct {
	db DBTX
	tx *TxRunner
}

// NewFileMetaRepository создаёт репозиторий метаданных файлов.
func NewFileMetaRepository(pool *pgxpool.Pool) FileMetaRepository {
	return &fileMetaRepo{db: pool, tx: NewTxRunner(pool)}
}

func (r *fileMetaRepo) Create(ctx context.Context, f *model.FileRecord) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.RecordMeta == nil {
		f.RecordMeta = model.RecordMeta{}
	}
	if f.MetadataVersion == 0 {
		f.MetadataVersion = 1
	}
	if f.StorageBackend == "" {
		f.StorageBackend = model.StorageBackendLocal
	}

	query := `
		INSERT INTO file_meta (id, filename, filename_normalized, content_type, size,
			storage_backend, storage_path, record_meta, checksum, checksum_alg,
			status, encrypted, encryption_key_id, uploaded_at, retention_until,
			metadata_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.Filename, f.FilenameNormalized, f.ContentType, f.Size,
		f.StorageBackend, f.StoragePath, f.RecordMeta, f.Checksum, f.ChecksumAlg,
		f.Status, f.Encrypted, f.EncryptionKeyID, f.UploadedAt, f.RetentionUntil,
		f.MetadataVersion,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileMetaRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_meta WHERE id = $1`, fileMetaColumns)
	return scanFileRecord(r.db.QueryRow(ctx, query, id))
}

func (r *fileMetaRepo) List(ctx context.Context) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_meta ORDER BY created_at DESC`, fileMetaColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		f, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

func (r *fileMetaRepo) UpdateRecordMeta(ctx context.Context, id string, meta model.RecordMeta) (*model.FileRecord, error) {
	if meta == nil {
		meta = model.RecordMeta{}
	}

	var f *model.FileRecord
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		// Блокируем строку: конкурентные обновления одного ID сериализуются,
		// read-modify-write без потерянных инкрементов версии.
		query := fmt.Sprintf(`SELECT %s FROM file_meta WHERE id = $1 FOR UPDATE`, fileMetaColumns)

		var scanErr error
		f, scanErr = scanFileRecord(tx.QueryRow(ctx, query, id))
		if scanErr != nil {
			return scanErr
		}

		if MetaEqual(f.RecordMeta, meta) {
			return nil
		}

		f.RecordMeta = meta
		f.MetadataVersion++

		if _, execErr := tx.Exec(ctx,
			`UPDATE file_meta SET record_meta = $2, metadata_version = $3 WHERE id = $1`,
			id, f.RecordMeta, f.MetadataVersion,
		); execErr != nil {
			return fmt.Errorf("ошибка обновления метаданных: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileMetaRepo) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_meta WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *fileMetaRepo) TouchAccess(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE file_meta SET last_accessed = $2, access_count = access_count + 1 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчика доступа: %w", err)
	}
	return nil
}

// scanFileRecord сканирует одну строку file_meta в FileRecord.
func scanFileRecord(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.Filename, &f.FilenameNormalized, &f.ContentType, &f.Size,
		&f.StorageBackend, &f.StoragePath, &f.RecordMeta, &f.Checksum, &f.ChecksumAlg,
		&f.Status, &f.Encrypted, &f.EncryptionKeyID, &f.CreatedAt, &f.UploadedAt,
		&f.LastAccessed, &f.AccessCount, &f.RetentionUntil, &f.DeletedAt, &f.MetadataVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
	}
	return f, nil
}

// MetaEqual сравнивает два значения record_meta структурно,
// через канонический JSON (json.Marshal сортирует ключи map).
// Оба значения проходят один и тот же путь нормализации
// (JSON-декодирование HTTP-тела и JSONB-декодирование из БД),
// поэтому типы чисел и вложенных структур совпадают.
func MetaEqual(a, b model.RecordMeta) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
