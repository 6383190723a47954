package sampler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DailyLog appends samples as JSON lines to one file per UTC day.
type DailyLog struct {
	Dir string

	mu sync.Mutex
}

// Path returns the file a sample taken on s.Timestamp is written to.
func (l *DailyLog) Path(s Sample) string {
	return filepath.Join(l.Dir, "metrics-"+s.Timestamp.UTC().Format("2006-01-02")+".log")
}

// Append writes s as a single line. The directory must already exist.
func (l *DailyLog) Append(s Sample) error {
	line, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path(s), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return f.Close()
}
