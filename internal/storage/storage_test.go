package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolet/service/internal/upload"
	"github.com/tolet/service/internal/validate"
)

func stageFile(t *testing.T, dir, name string, data []byte) upload.File {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return upload.File{Filename: name, Path: p, OriginalName: name, Size: int64(len(data))}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLocalStorageSaveInPlace(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := stageFile(t, s.Dir(), "1-a.png", []byte("x"))

	ref, err := s.Save(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "uploads/1-a.png", ref)
	assert.FileExists(t, f.Path)
}

func TestLocalStorageSaveMovesForeignStaging(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := stageFile(t, t.TempDir(), "2-b.png", []byte("x"))

	ref, err := s.Save(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "uploads/2-b.png", ref)
	assert.NoFileExists(t, f.Path)
	assert.FileExists(t, filepath.Join(s.Dir(), "2-b.png"))
}

func TestLocalStorageDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := stageFile(t, s.Dir(), "3-c.png", []byte("x"))
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "uploads/3-c.png"))
	assert.NoFileExists(t, f.Path)

	// already gone, foreign and traversal refs are all no-ops
	assert.NoError(t, s.Delete(ctx, "uploads/3-c.png"))
	assert.NoError(t, s.Delete(ctx, "https://cdn.example.com/uploads/3-c.png"))
	assert.NoError(t, s.Delete(ctx, "uploads/.."))
}

func TestLocalStorageDeleteStaysInDir(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	require.NoError(t, s.Delete(context.Background(), "uploads/../secret.txt"))
	assert.FileExists(t, outside)
}

func TestTransformFillCrop(t *testing.T) {
	out, err := Transform{Width: 300, Height: 300, Quality: 80}.Apply(bytes.NewReader(pngBytes(t, 640, 320)))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestTransformRejectsNonImage(t *testing.T) {
	_, err := Transform{Width: 10, Height: 10, Quality: 80}.Apply(strings.NewReader("not an image"))
	require.Error(t, err)
	assert.True(t, validate.IsError(err))
}

func TestCropRect(t *testing.T) {
	wide := cropRect(image.Rect(0, 0, 400, 200), 1, 1)
	assert.Equal(t, image.Rect(100, 0, 300, 200), wide)

	tall := cropRect(image.Rect(0, 0, 200, 400), 1, 1)
	assert.Equal(t, image.Rect(0, 100, 200, 300), tall)
}

func TestMinioPrepare(t *testing.T) {
	dir := t.TempDir()
	f := stageFile(t, dir, "1700-photo.png", pngBytes(t, 50, 80))
	f.ContentType = "image/png"

	plain := newMinioStorage(nil, MinioOptions{Bucket: "b", PublicBase: "http://cdn/tolet/"})
	key, _, size, ct, err := plain.prepare(f)
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700-photo.png", key)
	assert.Equal(t, f.Size, size)
	assert.Equal(t, "image/png", ct)

	resized := newMinioStorage(nil, MinioOptions{Bucket: "b", PublicBase: "http://cdn/tolet", Transform: &Transform{Width: 30, Height: 30, Quality: 80}})
	key, _, _, ct, err = resized.prepare(f)
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700-photo.jpg", key)
	assert.Equal(t, "image/jpeg", ct)

	disabled := newMinioStorage(nil, MinioOptions{Transform: &Transform{}})
	assert.Nil(t, disabled.transform)
}

func TestMinioRefs(t *testing.T) {
	s := newMinioStorage(nil, MinioOptions{Bucket: "b", PublicBase: "http://cdn/tolet/"})
	url := s.PublicURL("uploads/1-a.jpg")
	assert.Equal(t, "http://cdn/tolet/uploads/1-a.jpg", url)

	key, ok := s.KeyFromRef(url)
	assert.True(t, ok)
	assert.Equal(t, "uploads/1-a.jpg", key)

	_, ok = s.KeyFromRef("uploads/1-a.jpg")
	assert.False(t, ok)
	assert.NoError(t, s.Delete(context.Background(), "uploads/1-a.jpg"), "foreign refs are skipped")
}

// fakeStorage records saves and deletes; Save fails for files named in failOn.
type fakeStorage struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	failOn  map[string]bool
}

func (f *fakeStorage) Save(_ context.Context, file upload.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[file.Filename] {
		return "", errors.New("host rejected " + file.Filename)
	}
	ref := "hosted/" + file.Filename
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeStorage) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func TestSaveAllKeepsOrder(t *testing.T) {
	fs := &fakeStorage{}
	files := []upload.File{{Filename: "a"}, {Filename: "b"}, {Filename: "c"}}

	refs, err := SaveAll(context.Background(), fs, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"hosted/a", "hosted/b", "hosted/c"}, refs)
}

func TestSaveAllIsAllOrNone(t *testing.T) {
	fs := &fakeStorage{failOn: map[string]bool{"b": true}}
	files := []upload.File{{Filename: "a"}, {Filename: "b"}, {Filename: "c"}}

	refs, err := SaveAll(context.Background(), fs, files)
	require.Error(t, err)
	assert.Nil(t, refs)
	assert.ElementsMatch(t, fs.saved, fs.deleted, "every saved ref is rolled back")
}

func TestDeleteAllStopsAtFirstError(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	failing := &erroringStorage{Storage: s, failRef: "uploads/2.png"}

	err = DeleteAll(context.Background(), failing, []string{"uploads/1.png", "", "uploads/2.png", "uploads/3.png"})
	require.Error(t, err)
	assert.Equal(t, []string{"uploads/1.png", "uploads/2.png"}, failing.seen)
}

type erroringStorage struct {
	Storage
	failRef string
	seen    []string
}

func (e *erroringStorage) Delete(ctx context.Context, ref string) error {
	e.seen = append(e.seen, ref)
	if ref == e.failRef {
		return errors.New("permission denied")
	}
	return e.Storage.Delete(ctx, ref)
}
