package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/preorder/pkg/models"
	"go.uber.org/zap"
)

// FileStore keeps every order in one JSON document. Each Save replaces the
// whole document; there is no locking, callers serialize writes.
type FileStore struct {
	path   string
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) seqPath() string {
	return s.path + ".seq"
}

// Load returns all orders in store order. A missing, empty or malformed
// document reads as no orders.
func (s *FileStore) Load() ([]models.Order, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Order{}, nil
	}

	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		s.logger.Warn("Store document is malformed, treating as empty",
			zap.String("path", s.path),
			zap.Error(err))
		return []models.Order{}, nil
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Save replaces the stored document with orders.
func (s *FileStore) Save(orders []models.Order) error {
	if orders == nil {
		orders = []models.Order{}
	}
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode orders: %w", err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

// Sequence returns the highest id issued since the last clear: the larger of
// the sequence file and the highest id in the store, so a stale or missing
// sequence file never lets an id in use be handed out again.
func (s *FileStore) Sequence() (int, error) {
	orders, err := s.Load()
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, o := range orders {
		if o.ID > highest {
			highest = o.ID
		}
	}

	data, err := os.ReadFile(s.seqPath())
	if errors.Is(err, os.ErrNotExist) {
		return highest, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		s.logger.Warn("Sequence file is malformed, using highest stored id",
			zap.String("path", s.seqPath()),
			zap.Error(err))
		return highest, nil
	}
	if n > highest {
		return n, nil
	}
	return highest, nil
}

func (s *FileStore) SetSequence(n int) error {
	return writeFileAtomic(s.seqPath(), []byte(strconv.Itoa(n)+"\n"))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
