package failure

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := Wrap(KindPersistence, "write checkpoint", io.ErrShortWrite)
	wrapped := fmt.Errorf("trainer: %w", base)

	if !Is(wrapped, KindPersistence) {
		t.Fatalf("expected persistence kind in %v", wrapped)
	}
	if Is(wrapped, KindConfig) {
		t.Fatalf("unexpected config kind in %v", wrapped)
	}
	if !errors.Is(wrapped, io.ErrShortWrite) {
		t.Fatalf("cause lost: %v", wrapped)
	}
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindPersistence {
		t.Fatalf("KindOf=%q,%v", kind, ok)
	}
}

func TestErrorMessageIncludesSortedContext(t *testing.T) {
	err := New(KindAugmentation, "rotate", "non-finite output").
		WithContext("sample", 3).
		WithContext("angle", 0.5)
	msg := err.Error()
	want := "augmentation: rotate: non-finite output (angle=0.5 sample=3)"
	if msg != want {
		t.Fatalf("message=%q want %q", msg, want)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindData, "load", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("plain error should not carry a kind")
	}
	if !strings.Contains(Wrap(KindData, "", io.EOF).Error(), "EOF") {
		t.Fatal("cause missing from message")
	}
}
