package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLedger_AppendsAndSkipsRepeats(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orders.log")
	l, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("repeat append: %v", err)
	}
	if err := l.Append(context.Background(), "ord_2"); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "ord_1\nord_2\n" {
		t.Fatalf("unexpected file contents: %q", string(data))
	}
	if !l.Contains("ord_1") || l.Contains("ord_3") {
		t.Fatalf("unexpected membership answers")
	}
}

func TestFileLedger_ReloadsExistingEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orders.log")
	first, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if !second.Contains("ord_1") {
		t.Fatalf("expected reloaded ledger to remember ord_1")
	}
	if err := second.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("repeat append after reload: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "ord_1\n" {
		t.Fatalf("reload must not duplicate entries: %q", string(data))
	}
}

func TestFileLedger_RejectsEmptyOrderID(t *testing.T) {
	t.Parallel()

	l, err := NewFileLedger(filepath.Join(t.TempDir(), "orders.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	if err := l.Append(context.Background(), ""); !errors.Is(err, ErrEmptyOrderID) {
		t.Fatalf("expected ErrEmptyOrderID, got %v", err)
	}
}
