// Пакет filestore — операции с физическими файлами на диске.
// Streaming-запись с подсчётом SHA-256 на лету, чтение и удаление.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore — управление физическими файлами в корне хранилища.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (FV_STORAGE_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла (hex)
	Checksum string
}

// New создаёт новый FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveFile записывает данные из reader по ключу хранения с подсчётом
// SHA-256 на лету. Ключ получен от keygen и содержит один сегмент пути.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При любой ошибке temp файл удаляется — частично записанных файлов
// под финальным именем не остаётся, запись в БД можно безопасно
// создавать только после успешного возврата.
func (fs *FileStore) SaveFile(reader io.Reader, storageKey string) (*SaveResult, error) {
	fullPath := filepath.Join(fs.dataDir, storageKey)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл по абсолютному пути (полученному от pathguard)
// и возвращает его для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(fullPath string) (*os.File, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %w", err)
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return f, nil
}

// Remove удаляет файл по абсолютному пути (полученному от pathguard).
// Возвращает nil если файл уже не существует: байты могли быть
// удалены вне сервиса, метаданные всё равно должны быть удалены.
func (fs *FileStore) Remove(fullPath string) error {
	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}
