// Пакет model — доменные модели FileVault.
// FileRecord — единая структура метаданных файла, хранится в таблице file_meta.
package model

import (
	"strings"
	"time"
)

// FileStatus — статус файла в жизненном цикле.
type FileStatus string

const (
	// StatusUploading — запись создана, байты ещё пишутся (зарезервировано
	// для двухфазной загрузки, текущий поток не создаёт записей в этом статусе)
	StatusUploading FileStatus = "uploading"
	// StatusAvailable — файл загружен и доступен для операций
	StatusAvailable FileStatus = "available"
	// StatusDeleted — помечен на удаление (зарезервировано для soft-delete)
	StatusDeleted FileStatus = "deleted"
)

// StorageBackendLocal — единственный поддерживаемый storage backend.
// Поле storage_backend существует для будущих драйверов (S3 и т.п.).
const StorageBackendLocal = "local"

// ChecksumAlgSHA256 — алгоритм контрольной суммы по умолчанию.
const ChecksumAlgSHA256 = "sha256"

// RecordMeta — открытый словарь пользовательских метаданных файла.
// Содержимое не интерпретируется сервисом, хранится как JSONB
// и заменяется целиком (не merge по полям).
type RecordMeta map[string]any

// FileRecord — запись файла в реестре метаданных.
// Хранится в таблице file_meta, одна строка на загруженный файл.
type FileRecord struct {
	// ID — UUID файла, назначается при создании, неизменяем
	ID string
	// Filename — оригинальное имя файла от клиента (недоверенное)
	Filename string
	// FilenameNormalized — имя в нижнем регистре для case-insensitive поиска.
	// Производное поле, пересчитывается при каждой установке Filename.
	FilenameNormalized string
	// ContentType — MIME-тип, заявленный клиентом (не перепроверяется)
	ContentType string
	// Size — размер файла в байтах
	Size int64
	// StorageBackend — драйвер хранения байтов (сейчас всегда "local")
	StorageBackend string
	// StoragePath — относительный ключ в storage root.
	// Абсолютные пути недопустимы и отклоняются при любом использовании.
	StoragePath string
	// RecordMeta — произвольные структурированные метаданные клиента
	RecordMeta RecordMeta
	// Checksum — SHA-256 содержимого файла (hex)
	Checksum string
	// ChecksumAlg — алгоритм контрольной суммы
	ChecksumAlg string
	// Status — статус жизненного цикла
	Status FileStatus
	// Encrypted, EncryptionKeyID — зарезервировано, текущий поток не использует
	Encrypted       bool
	EncryptionKeyID *string
	// CreatedAt — время создания записи, назначается один раз
	CreatedAt time.Time
	// UploadedAt — время завершения записи байтов на диск
	UploadedAt *time.Time
	// LastAccessed — время последнего скачивания
	LastAccessed *time.Time
	// AccessCount — количество скачиваний
	AccessCount int64
	// RetentionUntil, DeletedAt — зарезервировано (retention, soft-delete)
	RetentionUntil *time.Time
	DeletedAt      *time.Time
	// MetadataVersion — версия RecordMeta, начинается с 1.
	// Увеличивается на 1 при каждой замене RecordMeta на отличающееся
	// значение; монотонно неубывающая для данного ID.
	MetadataVersion int
}

// SetFilename устанавливает имя файла и пересчитывает FilenameNormalized.
// Единственный корректный способ задать Filename — нормализация не
// "магическая" колонка БД, а явная производная.
func (f *FileRecord) SetFilename(filename string) {
	f.Filename = filename
	f.FilenameNormalized = NormalizeFilename(filename)
}

// NormalizeFilename возвращает имя файла в нижнем регистре
// для case-insensitive поиска.
func NormalizeFilename(filename string) string {
	return strings.ToLower(filename)
}
