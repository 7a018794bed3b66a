// Пакет pathguard — защита от выхода за пределы storage root.
// Превращает относительный ключ хранения из метаданных в абсолютный путь,
// отклоняя абсолютные ключи, ".."-сегменты и symlink-побеги.
//
// Проверка выполняется перед КАЖДЫМ чтением/записью/удалением по
// сохранённому ключу: ключи из БД — доверенные данные условно, они могли
// быть испорчены миграцией или вмешательством оператора.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath — ключ хранения разрешается за пределы storage root.
// Для корректного клиента не возникает: указывает на порчу данных или атаку.
// Вызывающий код не должен выполнять файловую операцию и не должен
// раскрывать разрешённый абсолютный путь в ответе клиенту.
var ErrInvalidPath = errors.New("недопустимый путь хранения")

// Guard — проверка путей относительно канонизированного storage root.
type Guard struct {
	// root — абсолютный канонизированный (без symlink) корень хранилища
	root string
}

// New создаёт Guard для указанного корня хранилища.
// Корень приводится к абсолютному виду и канонизируется (EvalSymlinks)
// один раз при старте. Директория должна существовать.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения абсолютного пути %s: %w", root, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("ошибка канонизации корня хранилища %s: %w", abs, err)
	}

	return &Guard{root: canonical}, nil
}

// Root возвращает канонизированный корень хранилища.
func (g *Guard) Root() string {
	return g.root
}

// Resolve превращает относительный ключ хранения в абсолютный путь.
// Возвращает ErrInvalidPath если ключ:
//   - пустой или абсолютный
//   - после лексической нормализации выходит за пределы root ("..")
//   - через symlink разрешается за пределы root
//
// Отсутствие файла по ключу ошибкой НЕ является — решение об этом
// принимает вызывающий код (download считает это ошибкой, delete — нет).
func (g *Guard) Resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: пустой ключ", ErrInvalidPath)
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: абсолютный ключ", ErrInvalidPath)
	}

	joined := filepath.Join(g.root, key)

	// Ключ, схлопывающийся в сам root ("." и т.п.), — не файл
	if joined == g.root {
		return "", fmt.Errorf("%w: ключ не указывает на файл", ErrInvalidPath)
	}

	// Лексическая проверка: Join уже выполнил Clean, ".."-сегменты
	// либо схлопнулись внутрь root, либо вывели путь наружу.
	if !g.within(joined) {
		return "", fmt.Errorf("%w: ключ выходит за пределы корня", ErrInvalidPath)
	}

	// Symlink-проверка: если файл существует, его канонический путь
	// тоже обязан оставаться внутри root.
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			// Файла нет — лексически путь корректен, этого достаточно
			return joined, nil
		}
		return "", fmt.Errorf("%w: ошибка канонизации", ErrInvalidPath)
	}
	if !g.within(resolved) {
		return "", fmt.Errorf("%w: symlink выходит за пределы корня", ErrInvalidPath)
	}

	return joined, nil
}

// within проверяет, что path равен root или является его потомком.
func (g *Guard) within(path string) bool {
	if path == g.root {
		return true
	}
	return strings.HasPrefix(path, g.root+string(filepath.Separator))
}
