package property

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolet/service/internal/comment"
	"github.com/tolet/service/internal/db"
	"github.com/tolet/service/internal/db/dbtest"
	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/testutil"
	"github.com/tolet/service/internal/upload"
)

type fixture struct {
	router http.Handler
	store  *dbtest.Memory
	local  *storage.LocalStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rc, ls := testutil.LocalUploads(t)
	return newFixtureWith(t, rc, ls, ls)
}

func newFixtureWith(t *testing.T, rc *upload.Receiver, ls *storage.LocalStorage, blobs storage.Storage) *fixture {
	t.Helper()
	store := dbtest.NewMemory()
	svc := NewService(store, blobs)
	commets := comment.NewHandler(comment.NewService(comment.NewRepository(store), svc.Repository(), blobs), rc)

	r := chi.NewRouter()
	r.Route("/property", func(r chi.Router) {
		r.Route("/commets", commets.Routes)
		NewHandler(svc, rc).Routes(r)
	})
	return &fixture{router: r, store: store, local: ls}
}

func images(prefix string, n int) []testutil.File {
	files := make([]testutil.File, n)
	for i := range files {
		files[i] = testutil.File{Field: ImagesField, Filename: fmt.Sprintf("%s-%d.jpg", prefix, i), Body: []byte("jpeg")}
	}
	return files
}

func (f *fixture) create(t *testing.T, fields map[string]string, files ...testutil.File) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var body map[string]any
	rec := testutil.Serve(t, f.router, testutil.MultipartRequest(t, http.MethodPost, "/property", fields, files...), &body)
	return rec, body
}

func (f *fixture) mustCreate(t *testing.T, fields map[string]string, files ...testutil.File) (string, []string) {
	t.Helper()
	rec, body := f.create(t, fields, files...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["_id"].(string), toStrings(body["img"])
}

func toStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.(string))
	}
	return out
}

func TestCreateProperty(t *testing.T) {
	f := newFixture(t)

	rec, body := f.create(t, map[string]string{"Locality": "Baneshwor", "price": "15000"}, images("room", 3)...)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.NotEmpty(t, body["_id"])
	assert.Equal(t, "Baneshwor", body["Locality"])
	assert.Equal(t, "15000", body["price"])
	img := toStrings(body["img"])
	require.Len(t, img, 3)
	for _, ref := range img {
		assert.FileExists(t, testutil.UploadedFile(f.local, ref))
	}
}

func TestCreatePropertyWithSameNamedImages(t *testing.T) {
	f := newFixture(t)
	photo := testutil.File{Field: ImagesField, Filename: "image.jpg", Body: []byte("jpeg")}

	rec, body := f.create(t, map[string]string{"Locality": "Downtown"}, photo, photo, photo)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	img := toStrings(body["img"])
	require.Len(t, img, 3)
	assert.Len(t, map[string]bool{img[0]: true, img[1]: true, img[2]: true}, 3)
	for _, ref := range img {
		assert.FileExists(t, testutil.UploadedFile(f.local, ref))
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	cases := map[string]struct {
		fields  map[string]string
		files   []testutil.File
		status  int
		message string
	}{
		"no locality":    {map[string]string{"price": "1"}, images("a", 1), http.StatusBadRequest, "Locality is required"},
		"no images":      {map[string]string{"Locality": "Patan"}, nil, http.StatusBadRequest, "images is required"},
		"nothing":        {nil, nil, http.StatusBadRequest, "Locality and images are required"},
		"too many files": {map[string]string{"Locality": "Patan"}, images("b", 11), http.StatusBadRequest, "Too many files: at most 10 allowed in images"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			rec, body := f.create(t, tc.fields, tc.files...)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, body["error"])
			assert.Zero(t, f.store.Count(db.Properties))
			assert.Empty(t, testutil.DirEntries(t, f.local.Dir()))
		})
	}
}

func TestListAndLocalityFilter(t *testing.T) {
	f := newFixture(t)

	var all []map[string]any
	rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property", nil), &all)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, all)

	f.store.Seed(db.Properties,
		db.Document{"Locality": "Kathmandu", "img": []any{}},
		db.Document{"Locality": "kathmandu", "img": []any{}},
		db.Document{"Locality": "Kathmandu Valley", "img": []any{}},
		db.Document{"Locality": "Kathmandu", "img": []any{}},
	)

	rec = testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property", nil), &all)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, all, 4)

	var matched []map[string]any
	rec = testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property/locality/Kathmandu", nil), &matched)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, matched, 2)
	for _, p := range matched {
		assert.Equal(t, "Kathmandu", p["Locality"])
	}

	rec = testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property/locality/Nowhere", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetIncludesCommets(t *testing.T) {
	f := newFixture(t)
	id, _ := f.mustCreate(t, map[string]string{"Locality": "Lalitpur"}, images("p", 1)...)
	f.store.Seed(db.Commets,
		db.Document{"property_id": id, "img": "uploads/c1.jpg", "text": "first"},
		db.Document{"property_id": "someone-else", "img": "uploads/c2.jpg"},
	)

	var detail struct {
		Property map[string]any   `json:"property"`
		Comets   []map[string]any `json:"comets"`
	}
	rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property/"+id, nil), &detail)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, detail.Property["_id"])
	require.Len(t, detail.Comets, 1)
	assert.Equal(t, "first", detail.Comets[0]["text"])
}

func TestUpdateAppendsImages(t *testing.T) {
	f := newFixture(t)
	id, before := f.mustCreate(t, map[string]string{"Locality": "Bhaktapur", "rooms": "2"}, images("old", 3)...)

	var body map[string]any
	req := testutil.MultipartRequest(t, http.MethodPut, "/property/"+id,
		map[string]string{"Locality": "Bhaktapur", "rooms": "3", "img": "uploads/injected.jpg"},
		images("new", 2)...)
	rec := testutil.Serve(t, f.router, req, &body)
	require.Equal(t, http.StatusOK, rec.Code)

	after := toStrings(body["img"])
	require.Len(t, after, 5)
	assert.Equal(t, before, after[:3])
	assert.NotContains(t, after, "uploads/injected.jpg")
	assert.Equal(t, "3", body["rooms"])
	for _, ref := range after {
		assert.FileExists(t, testutil.UploadedFile(f.local, ref))
	}
}

func TestUpdateReplacesFieldsWholesale(t *testing.T) {
	f := newFixture(t)
	id, before := f.mustCreate(t, map[string]string{"Locality": "Pokhara", "furnished": "yes"}, images("x", 1)...)

	var body map[string]any
	rec := testutil.Serve(t, f.router,
		testutil.JSONRequest(t, http.MethodPut, "/property/"+id, map[string]any{"Locality": "Pokhara", "_id": "other", "img": []string{}}),
		&body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["_id"])
	assert.NotContains(t, body, "furnished")
	assert.Equal(t, before, toStrings(body["img"]))
}

func TestConcurrentDisjointUpdates(t *testing.T) {
	f := newFixture(t)
	id, _ := f.mustCreate(t, map[string]string{"Locality": "Butwal"}, images("c", 1)...)

	writers := []map[string]any{
		{"Locality": "Butwal", "a": "1"},
		{"Locality": "Butwal", "b": "2"},
	}
	var wg sync.WaitGroup
	codes := make([]int, len(writers))
	for i, body := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, testutil.JSONRequest(t, http.MethodPut, "/property/"+id, body))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)

	var detail struct {
		Property map[string]any `json:"property"`
	}
	testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property/"+id, nil), &detail)
	delete(detail.Property, "_id")
	delete(detail.Property, "img")
	assert.Contains(t, writers, detail.Property)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	id, propImgs := f.mustCreate(t, map[string]string{"Locality": "Dharan"}, images("d", 2)...)
	keep, _ := f.mustCreate(t, map[string]string{"Locality": "Itahari"}, images("k", 1)...)

	var commetIDs, commetImgs []string
	for i := range 3 {
		var body map[string]any
		req := testutil.MultipartRequest(t, http.MethodPost, "/property/commets/"+id, nil,
			testutil.File{Field: comment.ImageField, Filename: fmt.Sprintf("c%d.jpg", i), Body: []byte("c")})
		rec := testutil.Serve(t, f.router, req, &body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		commetIDs = append(commetIDs, body["_id"].(string))
		commetImgs = append(commetImgs, body["img"].(string))
	}

	var msg map[string]string
	rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodDelete, "/property/"+id, nil), &msg)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Property deleted", msg["message"])

	assert.Equal(t, 1, f.store.Count(db.Properties))
	assert.Zero(t, f.store.Count(db.Commets))
	for _, ref := range append(propImgs, commetImgs...) {
		assert.NoFileExists(t, testutil.UploadedFile(f.local, ref))
	}
	for _, cid := range commetIDs {
		rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodDelete, "/property/commets/"+cid, nil), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec = testutil.Serve(t, f.router, httptest.NewRequest(http.MethodGet, "/property/"+keep, nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteRollsBackWhenCommetsFail(t *testing.T) {
	f := newFixture(t)
	id, imgs := f.mustCreate(t, map[string]string{"Locality": "Hetauda"}, images("r", 1)...)
	f.store.FailOn("DeleteMany", db.Commets, errors.New("lock timeout"))

	rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodDelete, "/property/"+id, nil), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, f.store.Count(db.Properties))
	assert.FileExists(t, testutil.UploadedFile(f.local, imgs[0]))
}

// brokenDeletes fails every Delete while saving normally.
type brokenDeletes struct {
	*storage.LocalStorage
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("permission denied")
}

func TestDeleteSurfacesBlobFailure(t *testing.T) {
	rc, ls := testutil.LocalUploads(t)
	f := newFixtureWith(t, rc, ls, brokenDeletes{ls})
	id, _ := f.mustCreate(t, map[string]string{"Locality": "Birgunj"}, images("b", 1)...)

	var body map[string]string
	rec := testutil.Serve(t, f.router, httptest.NewRequest(http.MethodDelete, "/property/"+id, nil), &body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "permission denied")
	assert.Zero(t, f.store.Count(db.Properties))
}

func TestUnknownPropertyIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(db.Properties, db.Document{"Locality": "Janakpur", "img": []any{}})

	reqs := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/property/missing", nil),
		testutil.JSONRequest(t, http.MethodPut, "/property/missing", map[string]any{"Locality": "x"}),
		httptest.NewRequest(http.MethodDelete, "/property/missing", nil),
	}
	for _, req := range reqs {
		var body map[string]string
		rec := testutil.Serve(t, f.router, req, &body)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.Method)
		assert.Equal(t, "Property not found", body["error"])
	}
	assert.Equal(t, 1, f.store.Count(db.Properties))
}

func TestUpdateUnknownDiscardsUploads(t *testing.T) {
	f := newFixture(t)

	req := testutil.MultipartRequest(t, http.MethodPut, "/property/missing", map[string]string{"Locality": "x"}, images("u", 2)...)
	rec := testutil.Serve(t, f.router, req, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, testutil.DirEntries(t, f.local.Dir()))
}
