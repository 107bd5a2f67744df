package main

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	triage "github.com/menta2k/annotation-triage"
	"github.com/menta2k/annotation-triage/internal/config"
	"github.com/menta2k/annotation-triage/internal/keys"
	"github.com/menta2k/annotation-triage/pkg/session"
)

func reviewConfig(t *testing.T, images ...string) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.SourceDir = filepath.Join(root, "src")
	for _, name := range []string{"error", "inaccurate", "single_light", "save"} {
		require.NoError(t, cfg.SetCategoryDir(name, filepath.Join(root, name)))
	}
	cfg.Preview.Path = filepath.Join(root, "preview.png")
	cfg.Normalize()
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))

	for _, name := range images {
		img := imaging.New(32, 24, color.NRGBA{90, 90, 90, 255})
		require.NoError(t, imaging.Save(img, filepath.Join(cfg.SourceDir, name)))
	}
	return cfg
}

func startReview(t *testing.T, cfg *config.Config) (*triage.Triage, *session.Session) {
	t.Helper()
	tr, err := triage.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	sess, err := tr.NewSession()
	require.NoError(t, err)
	return tr, sess
}

func TestRunReview_SortSaveUndo(t *testing.T) {
	cfg := reviewConfig(t, "a.png", "b.png", "c.png")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "a.txt"), []byte("3 0.1 0.1 0.5 0.1 0.5 0.5\n"), 0o644))
	tr, sess := startReview(t, cfg)

	var out bytes.Buffer
	err := runReview(context.Background(), tr, sess, strings.NewReader("a\nf\nz\nq\n"), &out, zerolog.Nop())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "[1/3] a.png  32x24  annotations: 1")
	assert.Contains(t, text, "[1/2] b.png")
	assert.Contains(t, text, "session: error=1, 2 remaining")

	assert.FileExists(t, filepath.Join(cfg.Categories[0].Dir, "image_1.png"))
	assert.FileExists(t, filepath.Join(cfg.Categories[0].Dir, "image_1.txt"))
	assert.FileExists(t, filepath.Join(cfg.SourceDir, "b.png"))
	assert.NoFileExists(t, filepath.Join(cfg.Save.Dir, "image_1.png"))
	assert.FileExists(t, cfg.Preview.Path)
}

func TestRunReview_NavigationAndNotices(t *testing.T) {
	cfg := reviewConfig(t, "a.png", "b.png")
	tr, sess := startReview(t, cfg)

	var out bytes.Buffer
	input := "\x1b[D" + "x" + "z" + "q"
	require.NoError(t, runReview(context.Background(), tr, sess, strings.NewReader(input), &out, zerolog.Nop()))

	text := out.String()
	assert.Contains(t, text, "[2/2] b.png")
	assert.Contains(t, text, "! nothing to undo")
	assert.Contains(t, text, "session: nothing sorted, 2 remaining")
}

func TestRunReview_AllSorted(t *testing.T) {
	cfg := reviewConfig(t, "a.png")
	tr, sess := startReview(t, cfg)

	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), tr, sess, strings.NewReader("s"), &out, zerolog.Nop()))
	assert.Contains(t, out.String(), "No images left to review.")
	assert.Contains(t, out.String(), "session: inaccurate=1, 0 remaining")
}

func TestRunReview_Cancelled(t *testing.T) {
	cfg := reviewConfig(t, "a.png")
	tr, sess := startReview(t, cfg)

	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, tr, sess, pr, &out, zerolog.Nop()))
	assert.FileExists(t, filepath.Join(cfg.SourceDir, "a.png"))
}

func TestReadKeys_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := readKeys(ctx, strings.NewReader("abc"))

	assert.Equal(t, keys.Key{Kind: keys.Rune, Ch: 'a'}, <-ch)
	cancel()

	// the pending send is abandoned and the channel closes
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("key reader did not stop")
		}
	}
}

func TestKeymap(t *testing.T) {
	cfg := reviewConfig(t)
	km := newKeymap(cfg)

	assert.Equal(t, session.SortTo("error"), km[keys.Key{Kind: keys.Rune, Ch: 'a'}])
	assert.Equal(t, session.Save(), km[keys.Key{Kind: keys.Rune, Ch: 'f'}])
	assert.Equal(t, session.Undo(), km[keys.Key{Kind: keys.Rune, Ch: 'z'}])
	assert.Equal(t, session.Prev(), km[keys.Key{Kind: keys.Left}])
	assert.Equal(t, session.Quit(), km[keys.Key{Kind: keys.Interrupt}])
	_, bound := km[keys.Key{Kind: keys.Up}]
	assert.False(t, bound)

	assert.Equal(t, "keys: <-/-> navigate  a=error  d=single_light  f=save  q=quit  s=inaccurate  z=undo", km.help())
}

func TestKeymap_NoSaveFolder(t *testing.T) {
	cfg := config.Default()
	km := newKeymap(cfg)
	_, bound := km[keys.Key{Kind: keys.Rune, Ch: 'f'}]
	assert.False(t, bound)
}

func TestReviewFlags_Apply(t *testing.T) {
	cfg := config.Default()
	flags := reviewFlags{
		source:  "/data/in",
		dests:   []string{"error=/data/err", "single_light=/data/single"},
		save:    "/data/ok",
		preview: "/tmp/p.webp",
	}
	require.NoError(t, flags.apply(cfg))
	assert.Equal(t, "/data/in", cfg.SourceDir)
	assert.Equal(t, "/data/err", cfg.Categories[0].Dir)
	assert.Equal(t, "/data/single", cfg.Categories[2].Dir)
	assert.Equal(t, "/data/ok", cfg.Save.Dir)
	assert.Equal(t, "/tmp/p.webp", cfg.Preview.Path)

	assert.Error(t, reviewFlags{dests: []string{"blurry=/x"}}.apply(config.Default()))
	assert.Error(t, reviewFlags{dests: []string{"error"}}.apply(config.Default()))
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{w: &buf}.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a\r\nb\r\n", buf.String())
}
