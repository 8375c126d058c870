// Package workflow generates blog drafts for client websites and moves them
// through review: a draft is either published and archived, or discarded.
//
// Accepting a draft is a two step change across systems. A publish intent is
// stored before WordPress is called and removed together with the draft once
// the completed blog is written, so Reconcile can finish or undo any accept
// that stopped in between.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"sitequill/categories"
	"sitequill/generator"
	"sitequill/models"
	"sitequill/store"
	"sitequill/wordpress"
)

// Generator produces the title and body of one blog post.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Content, error)
}

// Publisher puts posts live on a website and finds them again by slug.
type Publisher interface {
	Publish(ctx context.Context, site wordpress.Site, post wordpress.Post) (*wordpress.RemotePost, error)
	FindPostBySlug(ctx context.Context, site wordpress.Site, slug string) (*wordpress.RemotePost, error)
}

// Store is the part of the content store the engine uses.
type Store interface {
	GetWebsite(id uint) (*models.Website, error)
	WebsiteSummaries() ([]store.WebsiteSummary, error)
	CountCompleted(websiteID uint) (int64, error)
	CreateDraft(d *models.DraftBlog) error
	GetDraft(id uint) (*models.DraftBlog, error)
	ListDrafts() ([]models.DraftBlog, error)
	DeleteDraft(id uint) error
	ClaimDraft(draftID uint, slug string) (*models.PublishIntent, error)
	MarkPublished(intentID string, remotePostID int, remoteLink string) error
	ReleaseIntent(intentID string) error
	ListIntents() ([]models.PublishIntent, error)
	FinalizeIntent(intentID string) (*models.CompletedBlog, error)
}

// Engine runs generation and review for every website in the store.
type Engine struct {
	store        Store
	generator    Generator
	publisher    Publisher
	imageBaseURL string
	now          func() time.Time
	pickImage    func(n int) int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for the required count and reconcile age checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithImagePicker fixes which stock image of a bucket is used.
func WithImagePicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pickImage = pick }
}

// New builds an Engine. Featured images are picked under imageBaseURL.
func New(s Store, gen Generator, pub Publisher, imageBaseURL string, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		generator:    gen,
		publisher:    pub,
		imageBaseURL: imageBaseURL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequiredCount is how many more blogs a website needs to be on schedule:
// one quota per calendar month since the start date, the current month
// included, minus what has been completed. It can be negative. Websites
// without a start date or quota are never scheduled.
func RequiredCount(w models.Website, completed int64, now time.Time) int {
	if w.BlogStartingDate.IsZero() || w.BlogAmountMonthly <= 0 {
		return 0
	}
	start := w.BlogStartingDate.UTC()
	now = now.UTC()
	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	return (months+1)*w.BlogAmountMonthly - int(completed)
}

// SiteStatus is a website summary with its current required count.
type SiteStatus struct {
	store.WebsiteSummary
	Required int `json:"required"`
}

func (e *Engine) Statuses() ([]SiteStatus, error) {
	summaries, err := e.store.WebsiteSummaries()
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]SiteStatus, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, SiteStatus{
			WebsiteSummary: s,
			Required:       RequiredCount(s.Website, s.CompletedCount, now),
		})
	}
	return out, nil
}

type GenerateResult struct {
	WebsiteID  uint               `json:"website_id"`
	WebsiteURL string             `json:"website_url"`
	Required   int                `json:"required"`
	Skipped    bool               `json:"skipped"`
	Drafts     []models.DraftBlog `json:"drafts"`
}

// Generate creates as many drafts as the website's schedule requires. A
// failure stops the run; drafts created before it are kept and returned with
// the error.
func (e *Engine) Generate(ctx context.Context, websiteID uint) (*GenerateResult, error) {
	w, err := e.store.GetWebsite(websiteID)
	if err != nil {
		return nil, err
	}
	return e.generateFor(ctx, w)
}

func (e *Engine) generateFor(ctx context.Context, w *models.Website) (*GenerateResult, error) {
	res := &GenerateResult{WebsiteID: w.ID, WebsiteURL: w.URL}

	if err := checkMetadata(w); err != nil {
		return res, err
	}

	completed, err := e.store.CountCompleted(w.ID)
	if err != nil {
		return res, fmt.Errorf("count completed blogs for %s: %w", w.URL, err)
	}
	res.Required = RequiredCount(*w, completed, e.now())
	if res.Required <= 0 {
		log.Printf("workflow: %s is on schedule, nothing to generate", w.URL)
		res.Skipped = true
		return res, nil
	}

	req := generator.Request{
		Keywords:      w.KeywordList(),
		StockCategory: w.StockCategory,
		Locations:     w.LocationList(),
		PhoneNumber:   w.PhoneNumber,
		EmailAddress:  w.EmailAddress,
		CompanyName:   w.CompanyName,
	}

	log.Printf("workflow: generating %d drafts for %s", res.Required, w.URL)
	for i := 1; i <= res.Required; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("website %s: draft %d of %d: %w", w.URL, i, res.Required, err)
		}
		content, err := e.generator.Generate(ctx, req)
		if err != nil {
			log.Printf("workflow: %s draft %d of %d failed: %v", w.URL, i, res.Required, err)
			return res, fmt.Errorf("website %s: draft %d of %d: %w", w.URL, i, res.Required, err)
		}
		d := &models.DraftBlog{WebsiteID: w.ID, Title: content.Title, Content: content.Content}
		if err := e.store.CreateDraft(d); err != nil {
			return res, fmt.Errorf("website %s: store draft %d of %d: %w", w.URL, i, res.Required, err)
		}
		log.Printf("workflow: %s draft %d of %d stored as %d: %q", w.URL, i, res.Required, d.ID, d.Title)
		res.Drafts = append(res.Drafts, *d)
	}
	return res, nil
}

// RunAll generates for every website in turn. One website failing does not
// stop the others.
func (e *Engine) RunAll(ctx context.Context, websites []models.Website) BatchResult {
	var batch BatchResult
	for i := range websites {
		w := websites[i]
		res, err := e.generateFor(ctx, &w)
		o := Outcome{ID: w.ID, Label: w.URL}
		if res != nil {
			o.Created = len(res.Drafts)
			if res.Skipped {
				o.Status = StatusSkipped
			}
		}
		if o.Status == "" {
			o.Status = StatusGenerated
		}
		if err != nil {
			log.Printf("workflow: run all: %s: %v", w.URL, err)
		}
		batch.add(o, err)
	}
	return batch
}

// Accept publishes a draft to its website and archives it as completed.
func (e *Engine) Accept(ctx context.Context, draftID uint) (*models.CompletedBlog, error) {
	d, err := e.store.GetDraft(draftID)
	if err != nil {
		return nil, err
	}

	slug := fmt.Sprintf("%s-%s", generateSlug(d.Title), uuid.NewString()[:8])
	intent, err := e.store.ClaimDraft(d.ID, slug)
	if err != nil {
		return nil, err
	}
	if intent.State == models.IntentPublished {
		log.Printf("workflow: draft %d was already published as post %d, archiving", d.ID, intent.RemotePostID)
		return e.store.FinalizeIntent(intent.ID)
	}

	imageURL, err := categories.ImageURL(e.imageBaseURL, d.Website.StockCategory, e.pickImage)
	if err != nil {
		e.release(intent)
		return nil, fmt.Errorf("accept draft %d: %w", d.ID,
			&store.ValidationError{Field: "stock_category", Reason: err.Error()})
	}

	remote, err := e.publisher.Publish(ctx, siteFor(d.Website), wordpress.Post{
		Title:    d.Title,
		Content:  d.Content,
		Slug:     intent.Slug,
		ImageURL: imageURL,
	})
	if err != nil {
		e.release(intent)
		return nil, fmt.Errorf("accept draft %d: %w", d.ID, err)
	}

	if err := e.store.MarkPublished(intent.ID, remote.ID, remote.Link); err != nil {
		return nil, fmt.Errorf("accept draft %d: post %d is live but was not recorded: %w", d.ID, remote.ID, err)
	}
	completed, err := e.store.FinalizeIntent(intent.ID)
	if err != nil {
		return nil, fmt.Errorf("accept draft %d: post %d is live but was not archived: %w", d.ID, remote.ID, err)
	}
	log.Printf("workflow: draft %d published to %s as post %d", d.ID, d.Website.URL, remote.ID)
	return completed, nil
}

// Reject discards a draft.
func (e *Engine) Reject(_ context.Context, draftID uint) error {
	if err := e.store.DeleteDraft(draftID); err != nil {
		return err
	}
	log.Printf("workflow: draft %d rejected", draftID)
	return nil
}

// AcceptAll accepts every current draft in turn.
func (e *Engine) AcceptAll(ctx context.Context) (BatchResult, error) {
	return e.eachDraft(func(d models.DraftBlog) Outcome {
		o := Outcome{ID: d.ID, Label: d.Title, Status: StatusPublished}
		if _, err := e.Accept(ctx, d.ID); err != nil {
			o.Err = err
		}
		return o
	})
}

// RejectAll rejects every current draft in turn.
func (e *Engine) RejectAll(ctx context.Context) (BatchResult, error) {
	return e.eachDraft(func(d models.DraftBlog) Outcome {
		o := Outcome{ID: d.ID, Label: d.Title, Status: StatusRejected}
		if err := e.Reject(ctx, d.ID); err != nil {
			o.Err = err
		}
		return o
	})
}

func (e *Engine) eachDraft(fn func(d models.DraftBlog) Outcome) (BatchResult, error) {
	var batch BatchResult
	drafts, err := e.store.ListDrafts()
	if err != nil {
		return batch, fmt.Errorf("list drafts: %w", err)
	}
	for _, d := range drafts {
		o := fn(d)
		if o.Err != nil {
			log.Printf("workflow: draft %d: %v", d.ID, o.Err)
		}
		batch.add(o, o.Err)
	}
	return batch, nil
}

// Reconcile resolves publish intents left behind by interrupted accepts.
// Published intents are archived. Pending intents older than staleAfter are
// looked up on the website by slug: a live post is archived, otherwise the
// intent is dropped and the draft goes back to review.
func (e *Engine) Reconcile(ctx context.Context, staleAfter time.Duration) (BatchResult, error) {
	var batch BatchResult
	intents, err := e.store.ListIntents()
	if err != nil {
		return batch, fmt.Errorf("list publish intents: %w", err)
	}
	now := e.now()
	for _, in := range intents {
		o := Outcome{ID: in.DraftID, Label: in.Slug}
		err := e.reconcileOne(ctx, in, now, staleAfter, &o)
		if err != nil {
			log.Printf("workflow: reconcile draft %d: %v", in.DraftID, err)
		}
		batch.add(o, err)
	}
	return batch, nil
}

func (e *Engine) reconcileOne(ctx context.Context, in models.PublishIntent, now time.Time, staleAfter time.Duration, o *Outcome) error {
	if in.State == models.IntentPublished {
		o.Status = StatusArchived
		_, err := e.store.FinalizeIntent(in.ID)
		return err
	}
	if now.Sub(in.CreatedAt) < staleAfter {
		o.Status = StatusSkipped
		return nil
	}

	w, err := e.store.GetWebsite(in.WebsiteID)
	if err != nil {
		return err
	}
	remote, err := e.publisher.FindPostBySlug(ctx, siteFor(w), in.Slug)
	if err != nil {
		return err
	}
	if remote == nil {
		o.Status = StatusReleased
		return e.store.ReleaseIntent(in.ID)
	}
	o.Status = StatusArchived
	if err := e.store.MarkPublished(in.ID, remote.ID, remote.Link); err != nil {
		return err
	}
	_, err = e.store.FinalizeIntent(in.ID)
	return err
}

func (e *Engine) release(intent *models.PublishIntent) {
	if err := e.store.ReleaseIntent(intent.ID); err != nil {
		log.Printf("workflow: release intent %s for draft %d: %v", intent.ID, intent.DraftID, err)
	}
}

func siteFor(w *models.Website) wordpress.Site {
	return wordpress.Site{
		URL:                 w.URL,
		Username:            w.Username,
		ApplicationPassword: w.ApplicationPassword,
	}
}

func checkMetadata(w *models.Website) error {
	var missing []string
	if len(w.KeywordList()) == 0 {
		missing = append(missing, "keywords")
	}
	if _, ok := categories.Lookup(w.StockCategory); !ok {
		missing = append(missing, "stock_category")
	}
	if len(w.LocationList()) == 0 {
		missing = append(missing, "locations")
	}
	if w.PhoneNumber == "" {
		missing = append(missing, "phone_number")
	}
	if w.EmailAddress == "" {
		missing = append(missing, "email_address")
	}
	if w.CompanyName == "" {
		missing = append(missing, "company_name")
	}
	if len(missing) > 0 {
		return &MissingMetadataError{WebsiteURL: w.URL, Fields: missing}
	}
	return nil
}
