package backend

import (
	"errors"
	"testing"
)

// fakeSurface is a minimal Surface for registry tests.
type fakeSurface struct {
	name   string
	w, h   int
	closed bool
}

func (f *fakeSurface) Width() int         { return f.w }
func (f *fakeSurface) Height() int        { return f.h }
func (f *fakeSurface) Update([]byte) error { return nil }
func (f *fakeSurface) NativeHandle() any  { return f.name }
func (f *fakeSurface) Destroy()           { f.closed = true }

func fakeFactory(name string) Factory {
	return func(w, h int) (Surface, error) {
		return &fakeSurface{name: name, w: w, h: h}, nil
	}
}

func failingFactory(err error) Factory {
	return func(w, h int) (Surface, error) {
		return nil, err
	}
}

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("low", 10, fakeFactory("low"), nil)
	r.Register("high", 150, fakeFactory("high"), nil)
	r.Register("mid", 100, fakeFactory("mid"), nil)

	want := []string{"high", "mid", "low"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	s, err := r.NewSurface(8, 8)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	if s.NativeHandle() != "high" {
		t.Errorf("expected highest-priority backend, got %v", s.NativeHandle())
	}
}

func TestRegistryAvailabilityFilter(t *testing.T) {
	r := NewRegistry()
	r.Register("gone", 150, fakeFactory("gone"), func() bool { return false })
	r.Register("here", 10, fakeFactory("here"), func() bool { return true })

	avail := r.Available()
	if len(avail) != 1 || avail[0] != "here" {
		t.Fatalf("expected only the available backend, got %v", avail)
	}

	s, err := r.NewSurface(8, 8)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	if s.NativeHandle() != "here" {
		t.Errorf("expected fallback to the available backend, got %v", s.NativeHandle())
	}
}

func TestRegistryFallbackCapturesLastError(t *testing.T) {
	first := errors.New("gpu init failed")
	second := errors.New("also failed")

	r := NewRegistry()
	r.Register("a", 100, failingFactory(first), nil)
	r.Register("b", 10, failingFactory(second), nil)

	_, err := r.NewSurface(8, 8)
	if !errors.Is(err, second) {
		t.Errorf("expected the last failure surfaced, got %v", err)
	}
}

func TestRegistryByName(t *testing.T) {
	r := NewRegistry()
	r.Register("present", 10, fakeFactory("present"), nil)
	r.Register("offline", 20, fakeFactory("offline"), func() bool { return false })

	if _, err := r.NewSurfaceByName("missing", 8, 8); err == nil {
		t.Error("expected an error for an unregistered name")
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Name != "missing" {
			t.Errorf("expected NotFoundError{missing}, got %v", err)
		}
	}

	if _, err := r.NewSurfaceByName("offline", 8, 8); err == nil {
		t.Error("expected an error for an unavailable backend")
	} else {
		var ua *UnavailableError
		if !errors.As(err, &ua) || ua.Name != "offline" {
			t.Errorf("expected UnavailableError{offline}, got %v", err)
		}
	}

	s, err := r.NewSurfaceByName("present", 4, 4)
	if err != nil {
		t.Fatalf("NewSurfaceByName: %v", err)
	}
	if s.Width() != 4 || s.Height() != 4 {
		t.Errorf("expected 4x4 surface, got %dx%d", s.Width(), s.Height())
	}
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewSurface(8, 8); !errors.Is(err, ErrNoBackendAvailable) {
		t.Errorf("expected ErrNoBackendAvailable, got %v", err)
	}
}

func TestRegistryOrdered(t *testing.T) {
	r := NewRegistry()
	r.Register("low", 10, fakeFactory("low"), nil)
	r.Register("high", 100, fakeFactory("high"), nil)

	// An explicit order overrides priorities.
	s, err := r.NewSurfaceOrdered([]string{"low", "high"}, 8, 8)
	if err != nil {
		t.Fatalf("NewSurfaceOrdered: %v", err)
	}
	if s.NativeHandle() != "low" {
		t.Errorf("expected explicit order respected, got %v", s.NativeHandle())
	}

	// Unknown names fall through to the next entry.
	s, err = r.NewSurfaceOrdered([]string{"missing", "high"}, 8, 8)
	if err != nil {
		t.Fatalf("NewSurfaceOrdered with fallback: %v", err)
	}
	if s.NativeHandle() != "high" {
		t.Errorf("expected fallback within the order, got %v", s.NativeHandle())
	}

	// An empty order means the normal priority walk.
	s, err = r.NewSurfaceOrdered(nil, 8, 8)
	if err != nil {
		t.Fatalf("NewSurfaceOrdered(nil): %v", err)
	}
	if s.NativeHandle() != "high" {
		t.Errorf("expected priority walk for empty order, got %v", s.NativeHandle())
	}

	// When every name fails the last error is surfaced.
	if _, err := r.NewSurfaceOrdered([]string{"missing", "absent"}, 8, 8); err == nil {
		t.Error("expected an error when no ordered name works")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register("x", 42, fakeFactory("x"), nil)

	entry, ok := r.Get("x")
	if !ok {
		t.Fatal("expected entry for x")
	}
	entry.Priority = 0

	again, _ := r.Get("x")
	if again.Priority != 42 {
		t.Errorf("expected registry unaffected by mutation, got priority %d", again.Priority)
	}
}

// statefulBackend implements Backend for RegisterBackend coverage.
type statefulBackend struct {
	name string
}

func (b *statefulBackend) Name() string { return b.name }

func (b *statefulBackend) CreateSurface(w, h int) (Surface, error) {
	return &fakeSurface{name: b.name, w: w, h: h}, nil
}

func TestRegisterBackendInterface(t *testing.T) {
	b := &statefulBackend{name: "stateful-test"}
	RegisterBackend(b, 1, nil)
	t.Cleanup(func() { Unregister(b.name) })

	s, err := NewSurfaceByName(b.name, 6, 6)
	if err != nil {
		t.Fatalf("NewSurfaceByName: %v", err)
	}
	if s.NativeHandle() != b.name {
		t.Errorf("expected the backend's surface, got %v", s.NativeHandle())
	}
}

func TestSoftwareRegisteredGlobally(t *testing.T) {
	entry, ok := Get(BackendSoftware)
	if !ok {
		t.Fatal("expected the software backend registered on import")
	}
	if entry.Priority != PrioritySoftware {
		t.Errorf("expected priority %d, got %d", PrioritySoftware, entry.Priority)
	}

	s, err := NewSurfaceByName(BackendSoftware, 4, 4)
	if err != nil {
		t.Fatalf("NewSurfaceByName(software): %v", err)
	}
	defer s.Destroy()
	if s.NativeHandle() != nil {
		t.Error("expected no native handle from the software backend")
	}
}
