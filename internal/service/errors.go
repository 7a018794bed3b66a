// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidFilename — недопустимое имя файла.
	ErrInvalidFilename = errors.New("недопустимое имя файла")
	// ErrInvalidPath — путь хранения выходит за пределы корня.
	ErrInvalidPath = errors.New("недопустимый путь хранения")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrStorage — ошибка файлового хранилища.
	ErrStorage = errors.New("ошибка файлового хранилища")
)
