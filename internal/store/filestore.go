package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"go.uber.org/zap"
)

const (
	productsFile  = "products.json"
	movementsFile = "movements.json"
)

// FileStore keeps the ledger as two JSON documents in a directory,
// rewritten in full on every commit. Movements are stored newest first.
type FileStore struct {
	dir    string
	logger *zap.Logger

	mu        sync.Mutex
	products  []models.Product
	movements []models.Movement
}

// NewFileStore opens dir, creating it if needed. Missing or malformed
// documents are logged and treated as empty.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &FileStore{dir: dir, logger: util.Component("filestore")}
	s.products = loadDocument[models.Product](s, productsFile)
	s.movements = loadDocument[models.Movement](s, movementsFile)
	return s, nil
}

// LoadProducts returns the stored catalog
func (s *FileStore) LoadProducts(context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Product(nil), s.products...), nil
}

// LoadMovements returns the stored movements, newest first
func (s *FileStore) LoadMovements(context.Context) ([]models.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Movement(nil), s.movements...), nil
}

// Commit merges products by id, prepends movements and rewrites both documents.
// In-memory state only advances when both documents are replaced.
func (s *FileStore) Commit(_ context.Context, products []models.Product, movements []models.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextProducts := append([]models.Product(nil), s.products...)
	for _, p := range products {
		replaced := false
		for i := range nextProducts {
			if nextProducts[i].ID == p.ID {
				nextProducts[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			nextProducts = append(nextProducts, p)
		}
	}

	nextMovements := s.movements
	if len(movements) > 0 {
		nextMovements = make([]models.Movement, 0, len(movements)+len(s.movements))
		for i := len(movements) - 1; i >= 0; i-- {
			nextMovements = append(nextMovements, movements[i])
		}
		nextMovements = append(nextMovements, s.movements...)
	}

	if err := s.commitDocuments(nextProducts, nextMovements, len(movements) > 0); err != nil {
		return err
	}

	s.products = nextProducts
	s.movements = nextMovements
	return nil
}

// commitDocuments stages both documents before replacing either. Products
// are replaced first; if the movements rename then fails, the previous
// products document is restored so the pair on disk stays consistent.
func (s *FileStore) commitDocuments(products []models.Product, movements []models.Movement, writeMovements bool) error {
	productsTmp, err := s.stage(productsFile, products)
	if err != nil {
		return err
	}
	defer os.Remove(productsTmp)

	var movementsTmp string
	if writeMovements {
		movementsTmp, err = s.stage(movementsFile, movements)
		if err != nil {
			return err
		}
		defer os.Remove(movementsTmp)
	}

	if err := s.replace(productsTmp, productsFile); err != nil {
		return err
	}
	if !writeMovements {
		return nil
	}
	if err := s.replace(movementsTmp, movementsFile); err != nil {
		if rbErr := s.write(productsFile, s.products); rbErr != nil {
			s.logger.Error("Failed to restore products document after partial commit",
				zap.String("dir", s.dir), zap.Error(rbErr))
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func loadDocument[T any](s *FileStore, name string) []T {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return []T{}
	}
	if err != nil {
		s.logger.Error("Failed to read ledger document, starting empty", zap.String("path", path), zap.Error(err))
		return []T{}
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Error("Malformed ledger document, starting empty", zap.String("path", path), zap.Error(err))
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// write replaces name atomically through a temp file and rename
func (s *FileStore) write(name string, v any) error {
	tmp, err := s.stage(name, v)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	return s.replace(tmp, name)
}

// stage encodes v into a temp file next to name and returns its path
func (s *FileStore) stage(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return tmp.Name(), nil
}

func (s *FileStore) replace(tmp, name string) error {
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
