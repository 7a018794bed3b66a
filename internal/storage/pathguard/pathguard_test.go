package pathguard

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root)
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}
	return g, g.Root()
}

func TestResolve_ValidKey(t *testing.T) {
	g, root := newGuard(t)

	abs, err := g.Resolve("a1b2c3_report.pdf")
	if err != nil {
		t.Fatalf("Resolve() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		t.Errorf("путь %q вне корня %q", abs, root)
	}
	if filepath.Base(abs) != "a1b2c3_report.pdf" {
		t.Errorf("Base = %q, ожидался ключ", filepath.Base(abs))
	}
}

func TestResolve_MissingFileAllowed(t *testing.T) {
	// Отсутствие файла — не ошибка PathGuard: delete обязан пройти
	// проверку даже если байты уже удалены вручную.
	g, _ := newGuard(t)

	if _, err := g.Resolve("no_such_file.bin"); err != nil {
		t.Errorf("Resolve() для отсутствующего файла вернул ошибку: %v", err)
	}
}

func TestResolve_InvalidKeys(t *testing.T) {
	g, _ := newGuard(t)

	cases := []struct {
		name string
		key  string
	}{
		{"пустой ключ", ""},
		{"абсолютный путь", "/etc/passwd"},
		{"traversal", "../outside.txt"},
		{"traversal глубокий", "../../../../etc/passwd"},
		{"traversal в середине", "a/../../outside.txt"},
		{"схлопывание в корень", "."},
		{"схлопывание в корень через dir", "a/.."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Resolve(tc.key)
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Resolve(%q): err = %v, ожидался ErrInvalidPath", tc.key, err)
			}
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	g, root := newGuard(t)

	// Файл за пределами root, на который указывает symlink внутри root
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatalf("не удалось создать внешний файл: %v", err)
	}
	link := filepath.Join(root, "link_secret.txt")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink недоступен: %v", err)
	}

	_, err := g.Resolve("link_secret.txt")
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Resolve() через symlink: err = %v, ожидался ErrInvalidPath", err)
	}
}

func TestResolve_SubdirectoryKeyStaysInside(t *testing.T) {
	g, root := newGuard(t)

	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	abs, err := g.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(abs, root) {
		t.Errorf("путь %q вне корня", abs)
	}
}

func TestNew_MissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "no-such-dir")); err == nil {
		t.Error("New() для несуществующего корня вернул nil, ожидалась ошибка")
	}
}
