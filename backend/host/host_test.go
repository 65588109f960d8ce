package host

import (
	"bytes"
	"errors"
	"testing"

	"github.com/StanleySweet/gifbolt-go/backend"
)

// fakeTexture implements all optional host texture probes.
type fakeTexture struct {
	width, height int
	data          []byte
	premultiplied bool
	destroyed     bool
	updates       int
}

func (f *fakeTexture) UpdateData(data []byte) error {
	f.data = make([]byte, len(data))
	copy(f.data, data)
	f.updates++
	return nil
}

func (f *fakeTexture) SetPremultiplied(v bool) { f.premultiplied = v }
func (f *fakeTexture) Destroy()                { f.destroyed = true }

// staticTexture supports destruction but not in-place updates, forcing the
// recreate path.
type staticTexture struct {
	data      []byte
	destroyed bool
}

func (s *staticTexture) Destroy() { s.destroyed = true }

type fakeCreator struct {
	created  []*fakeTexture
	statics  []*staticTexture
	inPlace  bool
	failNext bool
}

func (c *fakeCreator) new(width, height int, data []byte) (any, error) {
	if c.failNext {
		c.failNext = false
		return nil, errors.New("creator exploded")
	}
	if c.inPlace {
		tex := &fakeTexture{width: width, height: height, data: append([]byte(nil), data...)}
		c.created = append(c.created, tex)
		return tex, nil
	}
	tex := &staticTexture{data: append([]byte(nil), data...)}
	c.statics = append(c.statics, tex)
	return tex, nil
}

func newTestSurface(t *testing.T, c *fakeCreator, width, height int) (*Surface, *struct {
	tex  any
	x, y float32
	n    int
}) {
	t.Helper()
	drawn := &struct {
		tex  any
		x, y float32
		n    int
	}{}
	s, err := newSurfaceFuncs(width, height, c.new, func(tex any, x, y float32) error {
		drawn.tex = tex
		drawn.x = x
		drawn.y = y
		drawn.n++
		return nil
	})
	if err != nil {
		t.Fatalf("newSurfaceFuncs: %v", err)
	}
	return s, drawn
}

// bgraPixels builds a 2x1 premultiplied BGRA frame: blue pixel, red pixel.
func bgraPixels() []byte {
	return []byte{
		255, 0, 0, 255, // B G R A -> blue
		0, 0, 255, 255, // -> red
	}
}

func TestUpdateCreatesPremultipliedRGBATexture(t *testing.T) {
	creator := &fakeCreator{inPlace: true}
	s, _ := newTestSurface(t, creator, 2, 1)
	defer s.Destroy()

	src := bgraPixels()
	if err := s.Update(src); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(creator.created) != 1 {
		t.Fatalf("created %d textures, want 1", len(creator.created))
	}
	tex := creator.created[0]
	if tex.width != 2 || tex.height != 1 {
		t.Errorf("texture size = %dx%d, want 2x1", tex.width, tex.height)
	}
	if !tex.premultiplied {
		t.Error("SetPremultiplied(true) was not called")
	}

	// BGRA in, RGBA out: channels swapped per pixel.
	wantRGBA := []byte{
		0, 0, 255, 255,
		255, 0, 0, 255,
	}
	if !bytes.Equal(tex.data, wantRGBA) {
		t.Errorf("texture data = %v, want %v", tex.data, wantRGBA)
	}

	// The caller's slice must stay premultiplied BGRA.
	if !bytes.Equal(src, bgraPixels()) {
		t.Error("Update modified the source pixels")
	}
}

func TestUpdateReusesTextureInPlace(t *testing.T) {
	creator := &fakeCreator{inPlace: true}
	s, _ := newTestSurface(t, creator, 2, 1)
	defer s.Destroy()

	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	if len(creator.created) != 1 {
		t.Errorf("created %d textures, want 1 (second frame should update in place)", len(creator.created))
	}
	if creator.created[0].updates != 1 {
		t.Errorf("UpdateData called %d times, want 1", creator.created[0].updates)
	}
}

func TestUpdateRecreatesWhenNotUpdatable(t *testing.T) {
	creator := &fakeCreator{}
	s, _ := newTestSurface(t, creator, 2, 1)
	defer s.Destroy()

	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	if len(creator.statics) != 2 {
		t.Fatalf("created %d textures, want 2", len(creator.statics))
	}
	if !creator.statics[0].destroyed {
		t.Error("old texture was not destroyed after replacement")
	}
	if creator.statics[1].destroyed {
		t.Error("current texture must stay alive")
	}
	if s.NativeHandle() != creator.statics[1] {
		t.Error("NativeHandle does not return the replacement texture")
	}
}

func TestUpdateValidates(t *testing.T) {
	creator := &fakeCreator{inPlace: true}
	s, _ := newTestSurface(t, creator, 2, 1)
	defer s.Destroy()

	if err := s.Update(make([]byte, 4)); !errors.Is(err, backend.ErrBadUpdateSize) {
		t.Errorf("short update error = %v, want ErrBadUpdateSize", err)
	}

	creator.failNext = true
	if err := s.Update(bgraPixels()); err == nil {
		t.Error("expected creator failure to surface")
	}
	if s.NativeHandle() != nil {
		t.Error("failed creation must not install a texture")
	}
}

func TestDraw(t *testing.T) {
	creator := &fakeCreator{inPlace: true}
	s, drawn := newTestSurface(t, creator, 2, 1)
	defer s.Destroy()

	if err := s.Draw(0, 0); !errors.Is(err, ErrNoTexture) {
		t.Errorf("Draw before Update = %v, want ErrNoTexture", err)
	}

	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Draw(12, 34); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if drawn.n != 1 || drawn.x != 12 || drawn.y != 34 {
		t.Errorf("draw recorded (%v, %v) x%d, want (12, 34) x1", drawn.x, drawn.y, drawn.n)
	}
	if drawn.tex != creator.created[0] {
		t.Error("Draw passed a different texture than Update created")
	}
}

func TestDestroy(t *testing.T) {
	creator := &fakeCreator{inPlace: true}
	s, _ := newTestSurface(t, creator, 2, 1)

	if err := s.Update(bgraPixels()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	s.Destroy()
	s.Destroy()

	if !creator.created[0].destroyed {
		t.Error("Destroy did not release the host texture")
	}
	if s.NativeHandle() != nil {
		t.Error("NativeHandle after Destroy should be nil")
	}
	if err := s.Update(bgraPixels()); !errors.Is(err, backend.ErrSurfaceDestroyed) {
		t.Errorf("Update after Destroy = %v, want ErrSurfaceDestroyed", err)
	}
	if err := s.Draw(0, 0); !errors.Is(err, backend.ErrSurfaceDestroyed) {
		t.Errorf("Draw after Destroy = %v, want ErrSurfaceDestroyed", err)
	}
}

func TestBadSurfaceSize(t *testing.T) {
	creator := &fakeCreator{}
	if _, err := newSurfaceFuncs(0, 4, creator.new, nil); !errors.Is(err, backend.ErrBadSurfaceSize) {
		t.Errorf("zero width error = %v, want ErrBadSurfaceSize", err)
	}
}

// TestRegisterNilDrawer registers with a nil drawer: the entry exists but
// reports unavailable, so auto-selection falls through to software, and
// asking for the host backend by name fails with ErrNoDrawer.
func TestRegisterNilDrawer(t *testing.T) {
	Register(nil)
	defer Unregister()

	if _, ok := backend.Get(backend.BackendHost); !ok {
		t.Fatal("host backend not registered")
	}
	if available() {
		t.Error("nil drawer must report unavailable")
	}

	s, err := backend.NewSurface(2, 2)
	if err != nil {
		t.Fatalf("NewSurface fallback: %v", err)
	}
	defer s.Destroy()
	if s.NativeHandle() != nil {
		t.Error("expected software fallback with nil native handle")
	}

	if _, err := newSurface(2, 2); !errors.Is(err, ErrNoDrawer) {
		t.Errorf("factory with nil drawer = %v, want ErrNoDrawer", err)
	}

	Unregister()
	if _, ok := backend.Get(backend.BackendHost); ok {
		t.Error("Unregister left the host backend in the registry")
	}
}
