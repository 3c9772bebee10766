package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadCheckpoint returns the next unprocessed input line offset. A missing
// checkpoint file means a fresh run starting at offset 0.
func ReadCheckpoint(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	offset, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %q: %w", strings.TrimSpace(string(data)), err)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative checkpoint offset %d", offset)
	}
	return offset, nil
}

// WriteCheckpoint overwrites the checkpoint. Callers must only do this after
// the corresponding output rows and log entry are durably flushed; that
// ordering is what bounds a crash to one duplicated batch.
func WriteCheckpoint(path string, offset int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(offset)+"\n"), 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
