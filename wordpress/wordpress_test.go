package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	goimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeWordPress struct {
	image       []byte
	imageStatus int
	mediaStatus int
	postStatus  int

	mediaUploads int
	uploaded     []byte
	uploadedType string
	created      []createPostRequest
	auth         []string
}

func (f *fakeWordPress) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/images/29/3.jpg", func(w http.ResponseWriter, _ *http.Request) {
		if f.imageStatus != 0 {
			w.WriteHeader(f.imageStatus)
			return
		}
		_, _ = w.Write(f.image)
	})
	mux.HandleFunc("/wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		f.auth = append(f.auth, user+":"+pass)
		if f.mediaStatus != 0 {
			w.WriteHeader(f.mediaStatus)
			_, _ = w.Write([]byte(`{"code":"rest_cannot_create","message":"Sorry, you are not allowed to upload"}`))
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.uploaded, _ = io.ReadAll(file)
		f.uploadedType = header.Header.Get("Content-Type")
		f.mediaUploads++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":77}`))
	})
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		f.auth = append(f.auth, user+":"+pass)
		if r.Method == http.MethodGet {
			if r.URL.Query().Get("slug") == "known-slug" {
				_, _ = w.Write([]byte(`[{"id":9,"link":"https://site.test/known-slug/"}]`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		if f.postStatus != 0 {
			w.WriteHeader(f.postStatus)
			_, _ = w.Write([]byte(`{"code":"rest_invalid_param"}`))
			return
		}
		var req createPostRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.created = append(f.created, req)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":501,"link":"https://site.test/post-501/"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testPost(server *httptest.Server) (Site, Post) {
	return Site{URL: server.URL + "/", Username: "editor", ApplicationPassword: "abcd efgh ijkl"},
		Post{
			Title:    "Lime Rendering in Leeds",
			Content:  "<h1>Lime Rendering in Leeds</h1><p>Body</p>",
			Slug:     "lime-rendering-in-leeds-1a2b3c4d",
			ImageURL: server.URL + "/images/29/3.jpg",
		}
}

func TestPublish_Success(t *testing.T) {
	fake := &fakeWordPress{image: pngBytes(t, 2400, 1200)}
	server := fake.server(t)
	site, post := testPost(server)

	client := NewClient(server.Client(), 1200)
	remote, err := client.Publish(context.Background(), site, post)
	require.NoError(t, err)

	assert.Equal(t, 501, remote.ID)
	assert.Equal(t, "https://site.test/post-501/", remote.Link)
	assert.Equal(t, 1, fake.mediaUploads)
	assert.Equal(t, "image/jpeg", fake.uploadedType)

	uploaded, err := jpeg.Decode(bytes.NewReader(fake.uploaded))
	require.NoError(t, err)
	assert.Equal(t, 1200, uploaded.Bounds().Dx())
	assert.Equal(t, 600, uploaded.Bounds().Dy())

	require.Len(t, fake.created, 1)
	created := fake.created[0]
	assert.Equal(t, "publish", created.Status)
	assert.Equal(t, 77, created.FeaturedMedia)
	assert.Equal(t, post.Title, created.Title)
	assert.Equal(t, post.Content, created.Content)
	assert.Equal(t, post.Slug, created.Slug)

	for _, a := range fake.auth {
		assert.Equal(t, "editor:abcd efgh ijkl", a)
	}
}

func TestPublish_ImageFetchFails(t *testing.T) {
	fake := &fakeWordPress{imageStatus: http.StatusNotFound}
	server := fake.server(t)
	site, post := testPost(server)

	_, err := NewClient(server.Client(), 0).Publish(context.Background(), site, post)

	assert.ErrorIs(t, err, ErrImageFetch)
	assert.False(t, errors.Is(err, ErrUpload))
	assert.Equal(t, 0, fake.mediaUploads)
	assert.Empty(t, fake.created)
}

func TestPublish_UploadFailsKeepsBody(t *testing.T) {
	fake := &fakeWordPress{image: pngBytes(t, 10, 10), mediaStatus: http.StatusForbidden}
	server := fake.server(t)
	site, post := testPost(server)

	_, err := NewClient(server.Client(), 0).Publish(context.Background(), site, post)

	require.ErrorIs(t, err, ErrUpload)
	var wpErr *Error
	require.ErrorAs(t, err, &wpErr)
	assert.Equal(t, StageUpload, wpErr.Stage)
	assert.Equal(t, http.StatusForbidden, wpErr.StatusCode)
	assert.Contains(t, wpErr.Body, "not allowed to upload")
	assert.Empty(t, fake.created)
}

func TestPublish_PostFails(t *testing.T) {
	fake := &fakeWordPress{image: pngBytes(t, 10, 10), postStatus: http.StatusBadRequest}
	server := fake.server(t)
	site, post := testPost(server)

	_, err := NewClient(server.Client(), 0).Publish(context.Background(), site, post)

	assert.ErrorIs(t, err, ErrPublish)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, fake.mediaUploads)
}

func TestFindPostBySlug(t *testing.T) {
	fake := &fakeWordPress{}
	server := fake.server(t)
	site, _ := testPost(server)
	client := NewClient(server.Client(), 0)

	remote, err := client.FindPostBySlug(context.Background(), site, "known-slug")
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.Equal(t, 9, remote.ID)

	remote, err = client.FindPostBySlug(context.Background(), site, "missing")
	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestNormalizeImage(t *testing.T) {
	small := normalizeImage(pngBytes(t, 300, 200), 1200)
	assert.Equal(t, "image/jpeg", small.contentType)
	decoded, err := jpeg.Decode(bytes.NewReader(small.data))
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())

	junk := normalizeImage([]byte("not an image at all"), 1200)
	assert.Equal(t, []byte("not an image at all"), junk.data)
	assert.Equal(t, "featured-image.jpg", junk.filename)
}

func TestNormalizeImage_TransparencyBecomesWhite(t *testing.T) {
	for _, width := range []int{300, 2400} {
		out := normalizeImage(pngBytes(t, width, 200), 1200)
		decoded, err := jpeg.Decode(bytes.NewReader(out.data))
		require.NoError(t, err)

		b := decoded.Bounds()
		r, g, bl, _ := decoded.At(b.Dx()/2, b.Dy()/2).RGBA()
		assert.Greater(t, r>>8, uint32(240), "width %d", width)
		assert.Greater(t, g>>8, uint32(240), "width %d", width)
		assert.Greater(t, bl>>8, uint32(240), "width %d", width)
	}
}
