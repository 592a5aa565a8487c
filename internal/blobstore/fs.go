// Package blobstore хранит изображения чеков в каталоге файловой системы.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound — файла с таким именем нет.
var ErrNotFound = errors.New("blob not found")

// ErrBadName — имя пустое или выходит за пределы каталога.
var ErrBadName = errors.New("invalid blob name")

// FS — хранилище в каталоге Dir. Имя объекта является его handle.
type FS struct {
	dir string
}

// NewFS создаёт каталог, если его нет.
func NewFS(dir string) (*FS, error) {
	const op = "blobstore.NewFS"
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &FS{dir: dir}, nil
}

// Put записывает data под name и возвращает handle.
// Файл сначала пишется во временный и затем переименовывается, поэтому
// читатели никогда не видят частично записанное изображение.
func (s *FS) Put(ctx context.Context, name string, data []byte) (string, error) {
	const op = "blobstore.Put"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	path, err := s.path(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return name, nil
}

// Get читает объект по handle.
func (s *FS) Get(ctx context.Context, handle string) ([]byte, error) {
	const op = "blobstore.Get"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	path, err := s.path(handle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// Delete удаляет объект. Отсутствующий объект ошибкой не считается.
func (s *FS) Delete(ctx context.Context, handle string) error {
	const op = "blobstore.Delete"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	path, err := s.path(handle)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *FS) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	return filepath.Join(s.dir, name), nil
}
