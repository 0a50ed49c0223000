package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolscope/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutPoolBatch appends aggregated pool records as JSON lines.
func (s *JsonlStorage) PutPoolBatch(pools []model.PoolRecord) error {
	return appendLines(s, len(pools), func(i int) (any, error) {
		return pools[i], nil
	})
}

// PutRateBatch appends pool rate estimates as JSON lines.
func (s *JsonlStorage) PutRateBatch(rates []model.PoolRate) error {
	return appendLines(s, len(rates), func(i int) (any, error) {
		return rates[i], nil
	})
}

func appendLines(s *JsonlStorage, count int, record func(int) (any, error)) error {
	if count == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < count; i++ {
		entry, err := record(i)
		if err != nil {
			return err
		}
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
