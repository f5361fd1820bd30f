package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
)

// FileLedger appends order ids to a file for durability, one id per line.
type FileLedger struct {
	mu   sync.Mutex
	f    *os.File
	seen map[string]struct{}
}

// NewFileLedger opens (or creates) the ledger file at the given path and
// loads already-recorded ids so repeat appends stay idempotent.
func NewFileLedger(path string) (*FileLedger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}

	return &FileLedger{f: f, seen: seen}, nil
}

// Append writes the order id and fsyncs.
func (l *FileLedger) Append(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if orderID == "" {
		return ErrEmptyOrderID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[orderID]; ok {
		return nil
	}

	data := []byte(orderID + "\n")
	n, err := l.f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("partial write: wrote %d of %d bytes", n, len(data))
	}
	if err := l.f.Sync(); err != nil {
		return err
	}

	l.seen[orderID] = struct{}{}
	return nil
}

// Contains reports whether an order id has been recorded.
func (l *FileLedger) Contains(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[orderID]
	return ok
}

// Close releases the underlying file handle.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
