package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	t.Run("message includes the cause", func(t *testing.T) {
		err := New(StorageOp, "failed to put term", errors.New("disk full"))
		want := "failed to put term: disk full"
		if err.Error() != want {
			t.Errorf("Expected error %q, got %q", want, err.Error())
		}
	})

	t.Run("message without a cause", func(t *testing.T) {
		err := New(Sync, "unexpected status 500", nil)
		if err.Error() != "unexpected status 500" {
			t.Errorf("Expected bare message, got %q", err.Error())
		}
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		cause := errors.New("locked")
		err := New(StorageInit, "open failed", cause)
		if !errors.Is(err, cause) {
			t.Error("Expected errors.Is to find the wrapped cause")
		}
	})
}

func TestKindOf(t *testing.T) {
	t.Run("finds the kind through wrapping", func(t *testing.T) {
		inner := New(CacheFetch, "precache failed", errors.New("timeout"))
		outer := fmt.Errorf("install: %w", inner)

		kind, ok := KindOf(outer)
		if !ok {
			t.Fatal("Expected to find a fault kind")
		}
		if kind != CacheFetch {
			t.Errorf("Expected kind %v, got %v", CacheFetch, kind)
		}
	})

	t.Run("plain errors carry no kind", func(t *testing.T) {
		if _, ok := KindOf(errors.New("plain")); ok {
			t.Error("Expected no kind for a plain error")
		}
	})
}

func TestIsKind(t *testing.T) {
	err := New(StorageOp, "delete failed", nil)
	if !IsKind(err, StorageOp) {
		t.Error("Expected IsKind to match StorageOp")
	}
	if IsKind(err, Sync) {
		t.Error("Expected IsKind not to match a different kind")
	}
}
