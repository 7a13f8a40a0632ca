package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/blob"
	"github.com/andrifirman/go-print-assets/internal/fetch"
	"github.com/andrifirman/go-print-assets/internal/sizes"
	"github.com/andrifirman/go-print-assets/internal/tierstore"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *blob.Memory, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mem := blob.NewMemory()
	tiers := tierstore.New(mem, fetch.New(2*time.Second), slog.Default())
	contract := sizes.NewContract(
		assets.SizeSpec{Width: 40, Height: 50},
		map[string]assets.SizeSpec{"mug-11oz": {Width: 64, Height: 32}},
	)
	return &Engine{
		Tiers:    tiers,
		Contract: contract,
		Timeout:  2 * time.Second,
		DPI:      300,
		Log:      slog.Default(),
	}, mem, srv
}

func sourceServer(t *testing.T) http.Handler {
	src := pngBytes(t, 20, 20)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	})
}

func TestRender_ConfiguredProductDimensions(t *testing.T) {
	e, mem, srv := newTestEngine(t, sourceServer(t))

	res := e.Render(context.Background(), assets.ExternalRef(srv.URL+"/a.png"),
		Context{OrderID: "o1", ItemIndex: 0, ProductID: "mug-11oz"})

	require.False(t, res.Degraded)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 32, res.Height)
	assert.Equal(t, "orders/o1/item-0.png", res.Output.Key)
	assert.Equal(t, assets.TierOrder, res.Output.Tier)
	assert.True(t, res.Output.PrintReady)
	assert.Greater(t, res.SizeBytes, int64(0))
	assert.Equal(t, 1, mem.Len())

	// the stored object really is a contract-size png
	rc, ct, err := mem.Get(context.Background(), res.Output.Key)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "image/png", ct)
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestRender_UnknownProductUsesDefault(t *testing.T) {
	e, _, srv := newTestEngine(t, sourceServer(t))

	res := e.Render(context.Background(), assets.ExternalRef(srv.URL+"/a.png"),
		Context{OrderID: "o1", ItemIndex: 2, ProductID: "no-such-product"})

	require.False(t, res.Degraded)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 50, res.Height)
}

func TestRender_StampsPrintDensity(t *testing.T) {
	e, mem, srv := newTestEngine(t, sourceServer(t))

	res := e.Render(context.Background(), assets.ExternalRef(srv.URL+"/a.png"),
		Context{OrderID: "o1", ItemIndex: 0})
	require.False(t, res.Degraded)

	rc, _, err := mem.Get(context.Background(), res.Output.Key)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.True(t, bytes.Contains(b, []byte("pHYs")), "output carries a pHYs chunk")
}

func TestRender_PreservesTransparency(t *testing.T) {
	// fully transparent source stays transparent after resampling
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	e, mem, srv := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))

	res := e.Render(context.Background(), assets.ExternalRef(srv.URL+"/t.png"),
		Context{OrderID: "o1", ItemIndex: 0})
	require.False(t, res.Degraded)

	rc, _, err := mem.Get(context.Background(), res.Output.Key)
	require.NoError(t, err)
	defer rc.Close()
	out, err := png.Decode(rc)
	require.NoError(t, err)
	_, _, _, a := out.At(20, 25).RGBA()
	assert.Zero(t, a)
}

func TestRender_UndecodableSourceDegrades(t *testing.T) {
	e, mem, srv := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not an image"))
	}))

	src := assets.ExternalRef(srv.URL + "/junk.bin")
	res := e.Render(context.Background(), src, Context{OrderID: "o1", ItemIndex: 1})

	assert.True(t, res.Degraded)
	assert.Equal(t, src, res.Output, "degraded result falls back to the source")
	assert.Zero(t, res.SizeBytes)
	assert.Zero(t, res.Width)
	assert.Equal(t, 0, mem.Len(), "nothing written on failure")
}

func TestRender_VanishedSourceDegrades(t *testing.T) {
	e, _, srv := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	src := assets.ExternalRef(srv.URL + "/gone.png")
	res := e.Render(context.Background(), src, Context{OrderID: "o1", ItemIndex: 0})
	assert.True(t, res.Degraded)
	assert.Equal(t, src, res.Output)
}

func TestRender_TimeoutDegrades(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})
	e, _, srv := newTestEngine(t, slow)
	e.Timeout = 30 * time.Millisecond

	src := assets.ExternalRef(srv.URL + "/slow.png")
	start := time.Now()
	res := e.Render(context.Background(), src, Context{OrderID: "o1", ItemIndex: 0})

	assert.True(t, res.Degraded)
	assert.Equal(t, src, res.Output)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "bound is wall-clock, not server-paced")
}

func TestRender_RetryOverwritesSameObject(t *testing.T) {
	e, mem, srv := newTestEngine(t, sourceServer(t))
	src := assets.ExternalRef(srv.URL + "/a.png")
	rc := Context{OrderID: "o1", ItemIndex: 3}

	first := e.Render(context.Background(), src, rc)
	second := e.Render(context.Background(), src, rc)

	require.False(t, first.Degraded)
	require.False(t, second.Degraded)
	assert.Equal(t, first.Output.Key, second.Output.Key)
	assert.Equal(t, 1, mem.Len(), "retries overwrite, never accumulate")
}

func TestNeedsRendering(t *testing.T) {
	cases := []struct {
		name string
		ref  assets.Ref
		want bool
	}{
		{"external source", assets.ExternalRef("https://x/a.png"), true},
		{"saved preview", assets.Ref{Key: "saved/u/a.png", Tier: assets.TierSaved}, true},
		{"order tier", assets.Ref{Key: "orders/o/item-0.png", Tier: assets.TierOrder}, false},
		{"print-ready marker", assets.Ref{Key: "saved/u/p.png", Tier: assets.TierSaved, PrintReady: true}, false},
		{"print-ready external", assets.Ref{Key: "https://x/p.png", Tier: assets.TierExternal, PrintReady: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsRendering(tc.ref))
		})
	}
}
