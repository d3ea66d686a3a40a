package guest

import (
	"context"
	"errors"
	"testing"
)

type fakeOwner struct {
	retained map[uint32]int
	released map[uint32]int
	resolved func(ptr uint32, target any) (any, error)
}

func newFakeOwner() *fakeOwner {
	return &fakeOwner{retained: map[uint32]int{}, released: map[uint32]int{}}
}

func (o *fakeOwner) Retain(ctx context.Context, ptr uint32) error {
	o.retained[ptr]++
	return nil
}

func (o *fakeOwner) Release(ctx context.Context, ptr uint32) error {
	o.released[ptr]++
	return nil
}

func (o *fakeOwner) Resolve(ctx context.Context, ptr uint32, target any) (any, error) {
	if o.resolved != nil {
		return o.resolved(ptr, target)
	}
	return nil, nil
}

func TestCreateRetainsOnce(t *testing.T) {
	owner := newFakeOwner()
	h, err := Create(context.Background(), 100, KindObject, owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if owner.retained[100] != 1 {
		t.Errorf("retained[100] = %d, want 1", owner.retained[100])
	}
	if h.Pointer() != 100 {
		t.Errorf("Pointer() = %d, want 100", h.Pointer())
	}
	if h.Kind() != KindObject {
		t.Errorf("Kind() = %v, want KindObject", h.Kind())
	}
}

func TestAdoptDoesNotRetain(t *testing.T) {
	owner := newFakeOwner()
	h := Adopt(200, KindClass, owner)
	if owner.retained[200] != 0 {
		t.Errorf("Adopt must not retain, got %d retains", owner.retained[200])
	}
	if h.Pointer() != 200 {
		t.Errorf("Pointer() = %d, want 200", h.Pointer())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	owner := newFakeOwner()
	h, err := Create(context.Background(), 300, KindObject, owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := h.Release(context.Background()); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if owner.released[300] != 1 {
		t.Errorf("released[300] = %d, want exactly 1", owner.released[300])
	}
}

func TestAsDelegatesToOwner(t *testing.T) {
	owner := newFakeOwner()
	owner.resolved = func(ptr uint32, target any) (any, error) {
		if ptr == 42 {
			return "resolved", nil
		}
		return nil, errors.New("unexpected pointer")
	}
	h, err := Create(context.Background(), 42, KindObject, owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	v, err := h.As(context.Background(), "string-target")
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if v != "resolved" {
		t.Errorf("As() = %v, want %q", v, "resolved")
	}
}

func TestEqual(t *testing.T) {
	owner := newFakeOwner()
	a, _ := Create(context.Background(), 1, KindObject, owner)
	b, _ := Create(context.Background(), 1, KindObject, owner)
	c, _ := Create(context.Background(), 2, KindObject, owner)

	if !a.Equal(b) {
		t.Error("handles over the same pointer should be Equal")
	}
	if a.Equal(c) {
		t.Error("handles over different pointers should not be Equal")
	}

	var nilHandle *Handle
	if a.Equal(nilHandle) {
		t.Error("non-nil handle must not equal a nil handle")
	}
}
