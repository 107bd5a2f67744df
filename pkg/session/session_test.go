package session

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/annotation-triage/pkg/history"
	"github.com/menta2k/annotation-triage/pkg/sorter"
	"github.com/menta2k/annotation-triage/pkg/types"
)

type fixture struct {
	src, rej, acc string
	sorter        *sorter.Sorter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		src: filepath.Join(root, "src"),
		rej: filepath.Join(root, "error"),
		acc: filepath.Join(root, "accepted"),
	}
	require.NoError(t, os.MkdirAll(f.src, 0o755))
	s, err := sorter.New(f.src, []sorter.Destination{
		{Name: "error", Dir: f.rej},
		{Name: "save", Dir: f.acc, Kind: types.OpSave},
	})
	require.NoError(t, err)
	f.sorter = s
	return f
}

func (f *fixture) image(t *testing.T, name string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	out, err := os.Create(filepath.Join(f.src, name))
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, png.Encode(out, img))
}

func (f *fixture) file(t *testing.T, name, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.src, name), []byte(data), 0o644))
}

func (f *fixture) session(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{Sorter: f.sorter, SaveDestination: "save"})
	require.NoError(t, err)
	return s
}

func mustLoad(t *testing.T, s *Session) *View {
	t.Helper()
	v, err := s.Load()
	require.NoError(t, err)
	return v
}

func TestNew_EmptySource(t *testing.T) {
	f := newFixture(t)
	f.file(t, "notes.txt", "0 0.1 0.1")

	_, err := New(Options{Sorter: f.sorter})
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestNew_UnknownSaveDestination(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")

	_, err := New(Options{Sorter: f.sorter, SaveDestination: "keep"})
	assert.ErrorIs(t, err, sorter.ErrInvalidDestination)
}

func TestNavigation_Wraps(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		f.image(t, n)
	}
	s := f.session(t)

	require.NoError(t, s.Dispatch(Prev()))
	v := mustLoad(t, s)
	assert.Equal(t, "c.png", v.Name)
	assert.Equal(t, 3, v.Position)

	require.NoError(t, s.Dispatch(Next()))
	v = mustLoad(t, s)
	assert.Equal(t, "a.png", v.Name)
	assert.Equal(t, 1, v.Position)
	assert.Equal(t, 3, v.Total)
}

func TestLoad_RendersAnnotations(t *testing.T) {
	f := newFixture(t)
	f.image(t, "cat.png")
	f.file(t, "cat.txt", "0 0.1 0.1 0.9 0.1 0.9 0.9 0.1 0.9\nbroken 0.5\n")
	s := f.session(t)

	v := mustLoad(t, s)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "0", v.Records[0].ClassID)
	assert.Len(t, v.Warnings, 1)
	assert.Empty(t, v.Notices)
	assert.Equal(t, v.Original.Bounds().Size(), v.Annotated.Bounds().Size())

	// the polygon is drawn on a copy
	assert.NotEqual(t, color.NRGBAModel.Convert(v.Original.At(4, 3)), v.Annotated.At(4, 3))
}

func TestSort_AdvancesToNextImage(t *testing.T) {
	f := newFixture(t)
	f.image(t, "cat.png")
	f.file(t, "cat.txt", "0 0.5 0.5")
	f.image(t, "dog.png")
	s := f.session(t)

	require.NoError(t, s.Dispatch(SortTo("error")))
	v := mustLoad(t, s)
	assert.Equal(t, "dog.png", v.Name)
	assert.Equal(t, 1, v.Total)

	assert.FileExists(t, filepath.Join(f.rej, "image_1.png"))
	assert.FileExists(t, filepath.Join(f.rej, "image_1.txt"))
	assert.NoFileExists(t, filepath.Join(f.src, "cat.txt"))

	st := s.Stats()
	assert.Equal(t, map[string]int{"error": 1}, st.Sorted)
	assert.Equal(t, 1, st.UndoDepth)
	assert.Equal(t, 1, st.Remaining)
}

func TestSort_LastImageClampsIndex(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	f.image(t, "b.png")
	s := f.session(t)

	require.NoError(t, s.Dispatch(Next()))
	require.NoError(t, s.Dispatch(Save()))
	v := mustLoad(t, s)
	assert.Equal(t, "a.png", v.Name)

	require.NoError(t, s.Dispatch(Save()))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoImages)
	assert.FileExists(t, filepath.Join(f.acc, "image_2.png"))
}

func TestUndo_ReturnsToRestoredImage(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		f.image(t, n)
	}
	s := f.session(t)

	require.NoError(t, s.Dispatch(SortTo("error")))
	require.NoError(t, s.Dispatch(Next()))
	assert.Equal(t, "c.png", mustLoad(t, s).Name)

	require.NoError(t, s.Dispatch(Undo()))
	v := mustLoad(t, s)
	assert.Equal(t, "a.png", v.Name)
	assert.Equal(t, 3, v.Total)
	assert.NoFileExists(t, filepath.Join(f.rej, "image_1.png"))
	assert.Empty(t, s.Stats().Sorted)
}

func TestUndo_Empty(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	s := f.session(t)

	err := s.Dispatch(Undo())
	assert.ErrorIs(t, err, history.ErrNothingToUndo)
	assert.Equal(t, "a.png", mustLoad(t, s).Name)
}

func TestUndo_FailureDropsEntry(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	f.image(t, "b.png")
	s := f.session(t)

	require.NoError(t, s.Dispatch(SortTo("error")))
	require.NoError(t, os.Remove(filepath.Join(f.rej, "image_1.png")))

	err := s.Dispatch(Undo())
	assert.True(t, history.IsUndoFailed(err))
	assert.Equal(t, 0, s.History().Len())
	assert.Equal(t, "b.png", mustLoad(t, s).Name)
}

func TestSort_InvalidDestination(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	s := f.session(t)

	err := s.Dispatch(SortTo("blurry"))
	assert.ErrorIs(t, err, sorter.ErrInvalidDestination)
	assert.FileExists(t, filepath.Join(f.src, "a.png"))
	assert.Equal(t, 0, s.History().Len())
}

func TestSave_WithoutSaveFolder(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	s, err := New(Options{Sorter: f.sorter})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Dispatch(Save()), sorter.ErrInvalidDestination)
}

func TestSort_MissingFile(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	f.image(t, "b.png")
	s := f.session(t)
	require.NoError(t, os.Remove(filepath.Join(f.src, "a.png")))

	err := s.Dispatch(SortTo("error"))
	assert.ErrorIs(t, err, sorter.ErrMissingFile)
	assert.Equal(t, []string{"b.png"}, s.Files())
}

func TestLoad_SkipsUnreadable(t *testing.T) {
	f := newFixture(t)
	f.file(t, "a.png", "definitely not a png")
	f.image(t, "b.png")
	s := f.session(t)

	v := mustLoad(t, s)
	assert.Equal(t, "b.png", v.Name)
	require.Len(t, v.Notices, 1)
	assert.ErrorIs(t, v.Notices[0], ErrUnreadableImage)
	assert.Equal(t, []string{"b.png"}, s.Files())
	assert.Equal(t, 1, s.Stats().Skipped)

	// skipped for good, even after a sort refreshes the list
	require.NoError(t, s.Dispatch(SortTo("error")))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoImages)
	assert.FileExists(t, filepath.Join(f.src, "a.png"))
}

func TestLoad_FileRemovedExternally(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	f.image(t, "b.png")
	s := f.session(t)
	require.NoError(t, os.Remove(filepath.Join(f.src, "a.png")))

	v := mustLoad(t, s)
	assert.Equal(t, "b.png", v.Name)
	require.Len(t, v.Notices, 1)
	assert.True(t, errors.Is(v.Notices[0], sorter.ErrMissingFile))
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.png")
	s := f.session(t)

	assert.False(t, s.Done())
	require.NoError(t, s.Dispatch(Quit()))
	assert.True(t, s.Done())
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "sort:error", SortTo("error").String())
	assert.Equal(t, "undo", Undo().String())
}
