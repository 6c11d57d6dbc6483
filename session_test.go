package overlay

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/compositor/compositortest"
	"github.com/gogpu/overlay/compositor/software"
)

// rig is a software compositor behind a call recorder.
type rig struct {
	sw  *software.Compositor
	rec *compositortest.Recorder
}

func newRig(w, h int) rig {
	sw := software.New(w, h)
	return rig{sw: sw, rec: compositortest.New(sw)}
}

// live asserts the number of open displays, resources and committed
// elements.
func (r rig) live(t *testing.T, displays, resources, elements int) {
	t.Helper()
	st := r.sw.Stats()
	if st.Displays != displays || st.Resources != resources || st.Elements != elements {
		t.Errorf("live displays/resources/elements = %d/%d/%d, want %d/%d/%d",
			st.Displays, st.Resources, st.Elements, displays, resources, elements)
	}
}

// opacities returns the opacities passed to ElementChangeOpacity.
func (r rig) opacities() []uint8 {
	var out []uint8
	for _, c := range r.rec.Calls() {
		if c.Op == compositortest.OpElementChangeOpacity && c.Err == nil {
			out = append(out, c.Opacity)
		}
	}
	return out
}

// writePNG writes a w x h PNG whose pixels come from fill and returns its
// path.
func writePNG(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	path := filepath.Join(t.TempDir(), "vignette.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func solid(c color.NRGBA) func(x, y int) color.NRGBA {
	return func(int, int) color.NRGBA { return c }
}

func TestInitWithVignette1080p(t *testing.T) {
	r := newRig(1920, 1080)
	path := writePNG(t, 1920, 1080, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: uint8(x ^ y)}
	})

	s, err := Init(context.Background(), path, WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = s.Free() })

	if got := r.rec.Count(compositortest.OpCreateResource); got != 2 {
		t.Errorf("resources created = %d, want 2", got)
	}
	if got := r.rec.Count(compositortest.OpUpdateSubmitSync); got != 1 {
		t.Errorf("commits = %d, want 1", got)
	}

	var adds []compositortest.Call
	for _, c := range r.rec.Calls() {
		if c.Op == compositortest.OpElementAdd {
			adds = append(adds, c)
		}
	}
	if len(adds) != 2 {
		t.Fatalf("elements inserted = %d, want 2", len(adds))
	}
	vignette, fade := adds[0], adds[1]
	if vignette.Layer >= fade.Layer {
		t.Errorf("vignette layer %d not below fade layer %d", vignette.Layer, fade.Layer)
	}
	if vignette.Alpha.Flags != compositor.AlphaFromSource {
		t.Errorf("vignette alpha flags = %d, want from source", vignette.Alpha.Flags)
	}
	if fade.Alpha != (compositor.Alpha{Flags: compositor.AlphaFixedAllPixels, Opacity: 255}) {
		t.Errorf("fade alpha = %+v, want fixed all pixels at 255", fade.Alpha)
	}

	if s.State() != StateReady || !s.HasVignette() || s.Opacity() != 255 {
		t.Errorf("state=%v vignette=%v opacity=%d", s.State(), s.HasVignette(), s.Opacity())
	}
	if g := s.Geometry(); g.Width != 1920 || g.Height != 1080 || g.Pitch() != 3840 {
		t.Errorf("geometry = %v", g)
	}
	r.live(t, 1, 2, 2)
}

func TestInitWithoutVignette(t *testing.T) {
	r := newRig(64, 48)

	s, err := Init(context.Background(), "", WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.HasVignette() {
		t.Error("HasVignette = true for empty image path")
	}
	if got := r.rec.Count(compositortest.OpCreateResource); got != 1 {
		t.Errorf("resources created = %d, want 1", got)
	}
	if got := r.rec.Count(compositortest.OpElementAdd); got != 1 {
		t.Errorf("elements inserted = %d, want 1", got)
	}
	r.live(t, 1, 1, 1)

	r.rec.Reset()
	if err := s.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got, want := r.rec.Ops(), "UpdateStart ElementRemove UpdateSubmitSync ResourceDelete DisplayClose"; got != want {
		t.Errorf("Free ops = %q, want %q", got, want)
	}
	r.live(t, 0, 0, 0)
}

func TestInitUnalignedWidthPitch(t *testing.T) {
	r := newRig(33, 7)
	path := writePNG(t, 33, 7, solid(color.NRGBA{R: 255, A: 255}))

	s, err := Init(context.Background(), path, WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	for _, c := range r.rec.Calls() {
		if c.Op == compositortest.OpWriteData && c.Pitch != 96 {
			t.Errorf("WriteData pitch = %d, want 96", c.Pitch)
		}
	}
}

func TestInitFailureLeavesNothingLive(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*compositortest.Recorder)
		want   error
	}{
		{"display open", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpOpenDisplay, 1, nil) }, ErrDisplayOpen},
		{"display zero handle", func(r *compositortest.Recorder) { r.ZeroHandleOn(compositortest.OpOpenDisplay, 1) }, ErrDisplayOpen},
		{"geometry query", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpDisplaySize, 1, nil) }, ErrGeometryQuery},
		{"fade resource", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpCreateResource, 1, nil) }, ErrResourceCreate},
		{"fade resource zero handle", func(r *compositortest.Recorder) { r.ZeroHandleOn(compositortest.OpCreateResource, 1) }, ErrResourceCreate},
		{"vignette resource", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpCreateResource, 2, nil) }, ErrResourceCreate},
		{"vignette write", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpWriteData, 2, nil) }, ErrResourceCreate},
		{"update start", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpUpdateStart, 1, nil) }, ErrUpdateCommit},
		{"vignette insert", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpElementAdd, 1, nil) }, ErrUpdateCommit},
		{"fade insert", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpElementAdd, 2, nil) }, ErrUpdateCommit},
		{"fade insert zero handle", func(r *compositortest.Recorder) { r.ZeroHandleOn(compositortest.OpElementAdd, 2) }, ErrUpdateCommit},
		{"commit", func(r *compositortest.Recorder) { r.FailOn(compositortest.OpUpdateSubmitSync, 1, nil) }, ErrUpdateCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(16, 8)
			path := writePNG(t, 16, 8, solid(color.NRGBA{G: 255, A: 128}))
			tt.inject(r.rec)

			s, err := Init(context.Background(), path, WithCompositor(r.rec))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Init error = %v, want %v", err, tt.want)
			}
			if s != nil {
				t.Errorf("Init returned a session with error %v", err)
			}
			r.live(t, 0, 0, 0)
		})
	}
}

func TestInitDecodeFailure(t *testing.T) {
	r := newRig(16, 8)
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Init(context.Background(), path, WithCompositor(r.rec))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Init error = %v, want ErrDecode", err)
	}
	if Code(err) != CodeDecode {
		t.Errorf("Code = %v, want %v", Code(err), CodeDecode)
	}
	if got := r.rec.Count(compositortest.OpElementAdd); got != 0 {
		t.Errorf("elements inserted = %d, want 0", got)
	}
	r.live(t, 0, 0, 0)
}

func TestInitMissingImage(t *testing.T) {
	r := newRig(16, 8)

	_, err := Init(context.Background(), filepath.Join(t.TempDir(), "missing.png"), WithCompositor(r.rec))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Init error = %v, want ErrDecode", err)
	}
	r.live(t, 0, 0, 0)
}

func TestInitDimensionMismatch(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"narrower", 15, 8},
		{"shorter", 16, 7},
		{"larger", 17, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(16, 8)
			path := writePNG(t, tt.w, tt.h, solid(color.NRGBA{A: 255}))

			_, err := Init(context.Background(), path, WithCompositor(r.rec))
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("Init error = %v, want ErrDimensionMismatch", err)
			}
			if got := r.rec.Count(compositortest.OpUpdateStart); got != 0 {
				t.Errorf("updates started = %d, want 0", got)
			}
			r.live(t, 0, 0, 0)
		})
	}
}

func TestInitInvalidOptionsTouchNothing(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero step", WithDefaults(DefaultDuration, 0)},
		{"negative step", WithDefaults(DefaultDuration, -5)},
		{"step above 255", WithDefaults(DefaultDuration, 256)},
		{"negative duration", WithDefaults(-1, 5)},
		{"layers inverted", WithLayers(3, 2)},
		{"layers equal", WithLayers(3, 3)},
		{"pitch alignment", WithPitchAlign(24)},
		{"display index", WithDisplay(-1)},
		{"nil clock", WithClock(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(16, 8)

			_, err := Init(context.Background(), "", WithCompositor(r.rec), tt.opt)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Init error = %v, want ErrInvalidArgument", err)
			}
			if calls := r.rec.Calls(); len(calls) != 0 {
				t.Errorf("compositor touched: %s", r.rec.Ops())
			}
		})
	}
}

func TestInitCanceledContext(t *testing.T) {
	r := newRig(16, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Init(ctx, "", WithCompositor(r.rec))
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Init error = %v, want ErrCanceled wrapping context.Canceled", err)
	}
	if len(r.rec.Calls()) != 0 {
		t.Errorf("compositor touched: %s", r.rec.Ops())
	}
}

func TestInitCustomLayersAndColor(t *testing.T) {
	r := newRig(8, 4)
	path := writePNG(t, 8, 4, solid(color.NRGBA{A: 0}))

	s, err := Init(context.Background(), path,
		WithCompositor(r.rec),
		WithLayers(10, 20),
		WithFadeColor(0xFFFF))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	els := r.sw.Elements()
	if len(els) != 2 || els[0].Layer != 10 || els[1].Layer != 20 {
		t.Fatalf("elements = %+v, want layers 10 and 20", els)
	}
	if got, want := r.sw.Snapshot().RGBAAt(0, 0), (color.RGBA{R: 255, G: 255, B: 255, A: 255}); got != want {
		t.Errorf("pixel = %v, want white fade", got)
	}
}

func TestSetFadeOpacity(t *testing.T) {
	r := newRig(8, 4)
	s, err := Init(context.Background(), "", WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	r.rec.Reset()
	if err := s.SetFadeOpacity(context.Background(), 77); err != nil {
		t.Fatalf("SetFadeOpacity: %v", err)
	}
	if got, want := r.rec.Ops(), "UpdateStart ElementChangeOpacity UpdateSubmitSync"; got != want {
		t.Errorf("ops = %q, want %q", got, want)
	}
	if s.Opacity() != 77 {
		t.Errorf("Opacity = %d, want 77", s.Opacity())
	}
	if got := r.sw.Elements()[0].Alpha.Opacity; got != 77 {
		t.Errorf("committed opacity = %d, want 77", got)
	}
}

func TestSetFadeOpacityCommitFailureKeepsOpacity(t *testing.T) {
	r := newRig(8, 4)
	s, err := Init(context.Background(), "", WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	r.rec.FailOn(compositortest.OpUpdateSubmitSync, 2, nil)
	err = s.SetFadeOpacity(context.Background(), 10)
	if !errors.Is(err, ErrUpdateCommit) {
		t.Fatalf("SetFadeOpacity error = %v, want ErrUpdateCommit", err)
	}
	if s.Opacity() != 255 {
		t.Errorf("Opacity = %d after failed commit, want 255", s.Opacity())
	}
}

func TestSetFadeOpacityChangeFailure(t *testing.T) {
	r := newRig(8, 4)
	s, err := Init(context.Background(), "", WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	r.rec.FailOn(compositortest.OpElementChangeOpacity, 1, nil)
	if err := s.SetFadeOpacity(context.Background(), 10); !errors.Is(err, ErrUpdateCommit) {
		t.Fatalf("SetFadeOpacity error = %v, want ErrUpdateCommit", err)
	}
	if st := r.sw.Stats(); st.Updates != 0 {
		t.Errorf("open updates = %d, want 0", st.Updates)
	}
}

func TestFreeTwice(t *testing.T) {
	r := newRig(8, 4)
	path := writePNG(t, 8, 4, solid(color.NRGBA{R: 1, A: 1}))
	s, err := Init(context.Background(), path, WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	r.live(t, 0, 0, 0)
	if s.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", s.State())
	}

	r.rec.Reset()
	if err := s.Free(); err != nil {
		t.Errorf("second Free = %v, want nil", err)
	}
	if len(r.rec.Calls()) != 0 {
		t.Errorf("second Free touched compositor: %s", r.rec.Ops())
	}

	if err := s.SetFadeOpacity(context.Background(), 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetFadeOpacity after Free = %v, want ErrNotInitialized", err)
	}
	if Code(ErrNotInitialized) != CodeInvalidArgument {
		t.Errorf("Code(ErrNotInitialized) = %v", Code(ErrNotInitialized))
	}
}

func TestFreeNilSession(t *testing.T) {
	var s *Session
	if err := s.Free(); err != nil {
		t.Errorf("Free on nil session = %v", err)
	}
	if s.State() != StateUninitialized {
		t.Errorf("State = %v", s.State())
	}
}

func TestFreeRetriesAfterFailedRemoval(t *testing.T) {
	r := newRig(8, 4)
	s, err := Init(context.Background(), "", WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.rec.Reset()
	r.rec.FailOn(compositortest.OpUpdateStart, 1, nil)

	if err := s.Free(); !errors.Is(err, ErrUpdateCommit) {
		t.Fatalf("Free error = %v, want ErrUpdateCommit", err)
	}
	if s.State() != StateFreeing {
		t.Errorf("State = %v, want freeing", s.State())
	}
	// The fade element is still shown: its resource and the display stay.
	r.live(t, 1, 1, 1)
	if n := r.rec.Count(compositortest.OpResourceDelete) + r.rec.Count(compositortest.OpDisplayClose); n != 0 {
		t.Errorf("released resources under a live element: %s", r.rec.Ops())
	}
	if err := s.SetFadeOpacity(context.Background(), 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetFadeOpacity while freeing = %v, want ErrNotInitialized", err)
	}

	if err := s.Free(); err != nil {
		t.Fatalf("second Free: %v", err)
	}
	r.live(t, 0, 0, 0)
	if s.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", s.State())
	}

	r.rec.Reset()
	if err := s.Free(); err != nil || len(r.rec.Calls()) != 0 {
		t.Errorf("third Free = %v, calls %q", err, r.rec.Ops())
	}
}

func TestFreeRetriesOnlyWhatIsLeft(t *testing.T) {
	tests := []struct {
		name      string
		failOp    string
		wantLive  [3]int // displays, resources, elements after the first Free
		wantRetry string
	}{
		{
			name:      "vignette removal",
			failOp:    compositortest.OpElementRemove,
			wantLive:  [3]int{1, 2, 1},
			wantRetry: "UpdateStart ElementRemove UpdateSubmitSync ResourceDelete ResourceDelete DisplayClose",
		},
		{
			name:      "vignette resource delete",
			failOp:    compositortest.OpResourceDelete,
			wantLive:  [3]int{0, 1, 0},
			wantRetry: "ResourceDelete",
		},
		{
			name:      "display close",
			failOp:    compositortest.OpDisplayClose,
			wantLive:  [3]int{1, 0, 0},
			wantRetry: "DisplayClose",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(8, 4)
			path := writePNG(t, 8, 4, solid(color.NRGBA{G: 9, A: 200}))
			s, err := Init(context.Background(), path, WithCompositor(r.rec))
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			r.rec.Reset()
			r.rec.FailOn(tt.failOp, 1, nil)

			if err := s.Free(); !errors.Is(err, compositortest.ErrInjected) {
				t.Fatalf("Free error = %v, want injected fault", err)
			}
			if s.State() != StateFreeing {
				t.Errorf("State = %v, want freeing", s.State())
			}
			r.live(t, tt.wantLive[0], tt.wantLive[1], tt.wantLive[2])

			r.rec.Reset()
			if err := s.Free(); err != nil {
				t.Fatalf("second Free: %v", err)
			}
			if got := r.rec.Ops(); got != tt.wantRetry {
				t.Errorf("retry calls = %q, want %q", got, tt.wantRetry)
			}
			r.live(t, 0, 0, 0)
			if s.State() != StateUninitialized {
				t.Errorf("State = %v, want uninitialized", s.State())
			}
		})
	}
}

func TestSessionOwnsRegistryBackend(t *testing.T) {
	s, err := Init(context.Background(), "", WithBackend("software", compositor.Options{Width: 32, Height: 16}))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if g := s.Geometry(); g.Width != 32 || g.Height != 16 {
		t.Errorf("geometry = %v, want 32x16", g)
	}
	sw, ok := s.Compositor().(*software.Compositor)
	if !ok {
		t.Fatalf("compositor = %T, want software", s.Compositor())
	}
	if err := s.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, err := sw.OpenDisplay(0); !errors.Is(err, compositor.ErrClosed) {
		t.Errorf("backend not closed by Free: %v", err)
	}
}

func TestInitUnknownBackend(t *testing.T) {
	_, err := Init(context.Background(), "", WithBackend("nonexistent", compositor.Options{}))
	if !errors.Is(err, ErrDisplayOpen) {
		t.Fatalf("Init error = %v, want ErrDisplayOpen", err)
	}
	var notFound *compositor.BackendNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error %v does not wrap BackendNotFoundError", err)
	}
}

func TestSnapshotFollowsOpacity(t *testing.T) {
	r := newRig(4, 2)
	path := writePNG(t, 4, 2, func(x, _ int) color.NRGBA {
		if x < 2 {
			return color.NRGBA{R: 255, A: 255}
		}
		return color.NRGBA{A: 0}
	})
	r.sw.SetBackground(image.NewUniform(color.White))

	s, err := Init(context.Background(), path, WithCompositor(r.rec))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Free()

	black := color.RGBA{A: 255}
	for _, x := range []int{0, 3} {
		if got := r.sw.Snapshot().RGBAAt(x, 1); got != black {
			t.Errorf("faded pixel %d = %v, want black", x, got)
		}
	}

	if err := s.SetFadeOpacity(context.Background(), 0); err != nil {
		t.Fatalf("SetFadeOpacity: %v", err)
	}
	snap := r.sw.Snapshot()
	if got, want := snap.RGBAAt(0, 0), (color.RGBA{R: 255, A: 255}); got != want {
		t.Errorf("vignette pixel = %v, want %v", got, want)
	}
	if got, want := snap.RGBAAt(3, 0), (color.RGBA{R: 255, G: 255, B: 255, A: 255}); got != want {
		t.Errorf("transparent vignette pixel = %v, want background %v", got, want)
	}
}

func TestStateString(t *testing.T) {
	if StateReady.String() != "ready" || StateUninitialized.String() != "uninitialized" ||
		StateFreeing.String() != "freeing" || State(9).String() != "unknown" {
		t.Error("unexpected State strings")
	}
}
