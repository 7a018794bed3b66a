// Пакет keygen — генерация ключей хранения для загружаемых файлов.
// Ключ хранения: случайный hex-токен + "_" + безопасное имя файла.
// Всегда один относительный сегмент пути, без "/", ".." и ведущего "/".
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename — имя файла пустое или содержит компонент директории.
// Попытка протащить путь в имени файла — ошибка клиента, не данные.
var ErrInvalidFilename = errors.New("недопустимое имя файла")

// tokenBytes — длина случайного токена в байтах (128 бит, 32 hex-символа).
const tokenBytes = 16

// NewKey генерирует ключ хранения для клиентского имени файла.
// Формат: {32-hex}_{filename}. Гарантии:
//   - относительный путь из одного сегмента (без "/")
//   - уникальность с подавляющей вероятностью при конкурентных вызовах
//   - исходное имя сохранено для визуальной трассировки
//
// Возвращает ErrInvalidFilename если имя пустое или отличается от своего
// последнего сегмента пути (т.е. содержит директорию — признак попытки
// path traversal, запрос отклоняется до любой записи на диск).
func NewKey(filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации случайного токена: %w", err)
	}

	return hex.EncodeToString(buf) + "_" + filename, nil
}

// ValidateFilename проверяет, что имя файла — одиночный безопасный сегмент.
// Отклоняет пустые имена, "." и "..", разделители пути (включая "\"
// для клиентов с Windows) и имена, у которых отсечение директории
// меняет значение.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: пустое имя", ErrInvalidFilename)
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: имя содержит разделитель пути: %q", ErrInvalidFilename, filename)
	}
	// Страховка: Base не должен менять имя
	if filepath.Base(filename) != filename {
		return fmt.Errorf("%w: имя содержит компонент директории: %q", ErrInvalidFilename, filename)
	}
	return nil
}
