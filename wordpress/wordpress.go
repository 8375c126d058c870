package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

type Stage string

const (
	StageImageFetch Stage = "image_fetch"
	StageUpload     Stage = "upload"
	StagePublish    Stage = "publish"
	StageLookup     Stage = "lookup"
)

var (
	ErrImageFetch = errors.New("featured image fetch failed")
	ErrUpload     = errors.New("media upload failed")
	ErrPublish    = errors.New("post publish failed")
	ErrLookup     = errors.New("post lookup failed")
)

// Error is returned by every failing call. StatusCode and Body are set when
// the remote answered with a non-2xx status.
type Error struct {
	Stage      Stage
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("wordpress %s", e.Stage)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch e.Stage {
	case StageImageFetch:
		return target == ErrImageFetch
	case StageUpload:
		return target == ErrUpload
	case StagePublish:
		return target == ErrPublish
	case StageLookup:
		return target == ErrLookup
	}
	return false
}

// Site is the target WordPress install and its application password login.
type Site struct {
	URL                 string
	Username            string
	ApplicationPassword string
}

type Post struct {
	Title    string
	Content  string
	Slug     string
	ImageURL string
}

// RemotePost is the subset of the WordPress post representation we keep.
type RemotePost struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

type Client struct {
	client        *http.Client
	maxImageWidth int
}

func NewClient(httpClient *http.Client, maxImageWidth int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if maxImageWidth <= 0 {
		maxImageWidth = defaultMaxImageWidth
	}
	return &Client{client: httpClient, maxImageWidth: maxImageWidth}
}

// Publish uploads the featured image and creates a published post that uses it.
func (c *Client) Publish(ctx context.Context, site Site, post Post) (*RemotePost, error) {
	raw, err := c.fetchImage(ctx, post.ImageURL)
	if err != nil {
		return nil, err
	}
	img := normalizeImage(raw, c.maxImageWidth)

	mediaID, err := c.uploadMedia(ctx, site, img)
	if err != nil {
		return nil, err
	}
	log.Printf("wordpress: uploaded media %d to %s", mediaID, site.URL)

	remote, err := c.createPost(ctx, site, post, mediaID)
	if err != nil {
		return nil, err
	}
	log.Printf("wordpress: published post %d on %s", remote.ID, site.URL)
	return remote, nil
}

// FindPostBySlug returns the published post with the slug, or nil when there is none.
func (c *Client) FindPostBySlug(ctx context.Context, site Site, slug string) (*RemotePost, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("status", "publish")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(site, "posts")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &Error{Stage: StageLookup, Err: err}
	}
	req.SetBasicAuth(site.Username, site.ApplicationPassword)

	var posts []RemotePost
	if err := c.doJSON(req, StageLookup, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &Error{Stage: StageImageFetch, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Stage: StageImageFetch, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Stage: StageImageFetch, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &Error{Stage: StageImageFetch, Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Stage: StageImageFetch, Err: errors.New("empty image body")}
	}
	return data, nil
}

func (c *Client) uploadMedia(ctx context.Context, site Site, img image) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, img.filename))
	h.Set("Content-Type", img.contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return 0, &Error{Stage: StageUpload, Err: err}
	}
	if _, err := part.Write(img.data); err != nil {
		return 0, &Error{Stage: StageUpload, Err: err}
	}
	if err := mw.Close(); err != nil {
		return 0, &Error{Stage: StageUpload, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(site, "media"), &buf)
	if err != nil {
		return 0, &Error{Stage: StageUpload, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(site.Username, site.ApplicationPassword)

	var media struct {
		ID int `json:"id"`
	}
	if err := c.doJSON(req, StageUpload, &media); err != nil {
		return 0, err
	}
	if media.ID == 0 {
		return 0, &Error{Stage: StageUpload, Err: errors.New("response has no media id")}
	}
	return media.ID, nil
}

type createPostRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia int    `json:"featured_media"`
	Slug          string `json:"slug,omitempty"`
}

func (c *Client) createPost(ctx context.Context, site Site, post Post, mediaID int) (*RemotePost, error) {
	blob, err := json.Marshal(createPostRequest{
		Title:         post.Title,
		Content:       post.Content,
		Status:        "publish",
		FeaturedMedia: mediaID,
		Slug:          post.Slug,
	})
	if err != nil {
		return nil, &Error{Stage: StagePublish, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(site, "posts"), bytes.NewReader(blob))
	if err != nil {
		return nil, &Error{Stage: StagePublish, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(site.Username, site.ApplicationPassword)

	var remote RemotePost
	if err := c.doJSON(req, StagePublish, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

func (c *Client) doJSON(req *http.Request, stage Stage, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Stage: stage, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Stage: stage, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Stage: stage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func endpoint(site Site, resource string) string {
	return strings.TrimRight(site.URL, "/") + "/wp-json/wp/v2/" + resource
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(b))
}
