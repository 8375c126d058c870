package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sitequill/database"
	"sitequill/generator"
	"sitequill/models"
	"sitequill/store"
	"sitequill/wordpress"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	calls  int
	failOn map[int]bool
}

func (g *fakeGenerator) Generate(_ context.Context, req generator.Request) (*generator.Content, error) {
	g.calls++
	if g.failOn[g.calls] {
		return nil, &generator.GenerationError{Step: generator.StepPart1, Err: errors.New("upstream 500")}
	}
	return &generator.Content{
		Title:   fmt.Sprintf("%s post %d", req.CompanyName, g.calls),
		Content: fmt.Sprintf("<h1>post %d</h1><p>%s</p>", g.calls, strings.Join(req.Locations, " ")),
	}, nil
}

type fakePublisher struct {
	published []wordpress.Post
	sites     []wordpress.Site
	failTitle map[string]error
	live      map[string]*wordpress.RemotePost
	nextID    int
}

func (p *fakePublisher) Publish(_ context.Context, site wordpress.Site, post wordpress.Post) (*wordpress.RemotePost, error) {
	if err := p.failTitle[post.Title]; err != nil {
		return nil, err
	}
	p.nextID++
	p.published = append(p.published, post)
	p.sites = append(p.sites, site)
	return &wordpress.RemotePost{ID: 1000 + p.nextID, Link: site.URL + "/" + post.Slug + "/"}, nil
}

func (p *fakePublisher) FindPostBySlug(_ context.Context, _ wordpress.Site, slug string) (*wordpress.RemotePost, error) {
	return p.live[slug], nil
}

type fixture struct {
	db    *gorm.DB
	store *store.Store
	gen   *fakeGenerator
	pub   *fakePublisher
	eng   *Engine
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db))

	f := &fixture{
		db:    db,
		store: store.New(db),
		gen:   &fakeGenerator{failOn: map[int]bool{}},
		pub:   &fakePublisher{failTitle: map[string]error{}, live: map[string]*wordpress.RemotePost{}},
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithImagePicker(func(int) int { return 2 })}, opts...)
	f.eng = New(f.store, f.gen, f.pub, "https://images.test", opts...)
	return f
}

func (f *fixture) website(t *testing.T, url string, mutate ...func(*models.Website)) *models.Website {
	t.Helper()
	w := &models.Website{
		URL:                 url,
		Username:            "editor",
		ApplicationPassword: "abcd efgh",
		CompanyName:         "Smooth Walls Ltd",
		PhoneNumber:         "0113 000 0000",
		EmailAddress:        "hello@plasterers.test",
		StockCategory:       "Plastering",
		Keywords:            "skimming, rendering",
		Locations:           "Leeds, York",
		BlogAmountMonthly:   2,
		BlogStartingDate:    testNow.AddDate(0, -2, 0),
	}
	for _, m := range mutate {
		m(w)
	}
	require.NoError(t, f.store.CreateWebsite(w))
	return w
}

func (f *fixture) draft(t *testing.T, websiteID uint, title string) *models.DraftBlog {
	t.Helper()
	d := &models.DraftBlog{WebsiteID: websiteID, Title: title, Content: "<p>" + title + "</p>"}
	require.NoError(t, f.store.CreateDraft(d))
	return d
}

func TestRequiredCount(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		monthly   int
		completed int64
		expected  int
	}{
		{"two months ago", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), 2, 0, 6},
		{"this month", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), 3, 0, 3},
		{"partly done", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), 2, 4, 2},
		{"ahead of schedule", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), 1, 5, -3},
		{"across a year", time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC), 1, 0, 12},
		{"calendar months", time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC), 1, 0, 2},
		{"not scheduled", time.Time{}, 5, 0, 0},
		{"no quota", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0, 0, 0},
		{"quota dropped", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := models.Website{BlogStartingDate: tt.start, BlogAmountMonthly: tt.monthly}
			assert.Equal(t, tt.expected, RequiredCount(w, tt.completed, testNow))
		})
	}
}

func TestGenerate_CreatesRequiredDrafts(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")

	res, err := f.eng.Generate(context.Background(), w.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Required)
	assert.False(t, res.Skipped)
	assert.Len(t, res.Drafts, 6)
	assert.Equal(t, 6, f.gen.calls)

	drafts, err := f.store.ListDrafts()
	require.NoError(t, err)
	require.Len(t, drafts, 6)
	for _, d := range drafts {
		assert.Equal(t, w.ID, d.WebsiteID)
		assert.Contains(t, d.Content, "Leeds York")
	}
}

func TestGenerate_NothingToDo(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test", func(w *models.Website) {
		w.BlogStartingDate = testNow
		w.BlogAmountMonthly = 1
	})
	require.NoError(t, f.db.Create(&models.CompletedBlog{WebsiteID: w.ID, Title: "done"}).Error)

	res, err := f.eng.Generate(context.Background(), w.ID)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, 0, res.Required)
	assert.Zero(t, f.gen.calls)
	drafts, _ := f.store.ListDrafts()
	assert.Empty(t, drafts)
}

func TestGenerate_MissingMetadata(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test", func(w *models.Website) {
		w.PhoneNumber = ""
		w.Keywords = " , "
		w.StockCategory = ""
	})

	_, err := f.eng.Generate(context.Background(), w.ID)

	require.ErrorIs(t, err, ErrMissingMetadata)
	var mErr *MissingMetadataError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, []string{"keywords", "stock_category", "phone_number"}, mErr.Fields)
	assert.Zero(t, f.gen.calls)
}

func TestGenerate_StopsOnFailureKeepsEarlierDrafts(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	f.gen.failOn[3] = true

	res, err := f.eng.Generate(context.Background(), w.ID)

	require.ErrorIs(t, err, generator.ErrGeneration)
	assert.Contains(t, err.Error(), "draft 3 of 6")
	assert.Equal(t, 3, f.gen.calls)
	assert.Len(t, res.Drafts, 2)
	drafts, _ := f.store.ListDrafts()
	assert.Len(t, drafts, 2)
}

func TestGenerate_WebsiteNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Generate(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	f := setup(t)
	monthly := func(n int) func(*models.Website) {
		return func(w *models.Website) {
			w.BlogStartingDate = testNow
			w.BlogAmountMonthly = n
		}
	}
	a := f.website(t, "https://a.test", monthly(1))
	b := f.website(t, "https://b.test", monthly(1), func(w *models.Website) { w.CompanyName = "" })
	c := f.website(t, "https://c.test", monthly(2))
	d := f.website(t, "https://d.test", monthly(0))

	batch := f.eng.RunAll(context.Background(), []models.Website{*a, *b, *c, *d})

	require.Len(t, batch.Items, 4)
	assert.Equal(t, 1, batch.Failed())
	assert.Equal(t, 3, batch.Succeeded())
	assert.Equal(t, StatusGenerated, batch.Items[0].Status)
	assert.Equal(t, 1, batch.Items[0].Created)
	assert.Equal(t, StatusFailed, batch.Items[1].Status)
	assert.ErrorIs(t, batch.Items[1].Err, ErrMissingMetadata)
	assert.Equal(t, 2, batch.Items[2].Created)
	assert.Equal(t, StatusSkipped, batch.Items[3].Status)
	assert.ErrorIs(t, batch.Err(), ErrMissingMetadata)

	drafts, _ := f.store.ListDrafts()
	assert.Len(t, drafts, 3)
}

func TestAccept(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d := f.draft(t, w.ID, "Lime Rendering in Leeds")

	completed, err := f.eng.Accept(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, d.Title, completed.Title)
	assert.Equal(t, d.Content, completed.Content)
	assert.Equal(t, w.ID, completed.WebsiteID)
	assert.Equal(t, 1001, completed.RemotePostID)

	require.Len(t, f.pub.published, 1)
	post := f.pub.published[0]
	assert.Equal(t, "https://images.test/29/3.jpg", post.ImageURL)
	assert.True(t, strings.HasPrefix(post.Slug, "lime-rendering-in-leeds-"), post.Slug)
	assert.Equal(t, "https://plasterers.test", f.pub.sites[0].URL)
	assert.Equal(t, "editor", f.pub.sites[0].Username)
	assert.Equal(t, "abcd efgh", f.pub.sites[0].ApplicationPassword)

	_, err = f.store.GetDraft(d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, _ := f.store.CountCompleted(w.ID)
	assert.Equal(t, int64(1), n)
	intents, _ := f.store.ListIntents()
	assert.Empty(t, intents)
}

func TestAccept_IdenticalDraftsEachArchived(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	first := f.draft(t, w.ID, "Same title")
	second := f.draft(t, w.ID, "Same title")

	c1, err := f.eng.Accept(context.Background(), first.ID)
	require.NoError(t, err)
	c2, err := f.eng.Accept(context.Background(), second.ID)
	require.NoError(t, err)

	assert.Len(t, f.pub.published, 2)
	assert.NotEqual(t, c1.ID, c2.ID)
	assert.Equal(t, 1001, c1.RemotePostID)
	assert.Equal(t, 1002, c2.RemotePostID)
	n, _ := f.store.CountCompleted(w.ID)
	assert.Equal(t, int64(2), n)
}

func TestAccept_NotFoundMutatesNothing(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	f.draft(t, w.ID, "Keep me")

	_, err := f.eng.Accept(context.Background(), 999)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.pub.published)
	drafts, _ := f.store.ListDrafts()
	assert.Len(t, drafts, 1)
	n, _ := f.store.CountCompleted(w.ID)
	assert.Zero(t, n)
}

func TestAccept_PublishFailureKeepsDraft(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d := f.draft(t, w.ID, "Broken")
	f.pub.failTitle["Broken"] = &wordpress.Error{Stage: wordpress.StagePublish, StatusCode: 400, Body: "bad"}

	_, err := f.eng.Accept(context.Background(), d.ID)

	assert.ErrorIs(t, err, wordpress.ErrPublish)
	_, err = f.store.GetDraft(d.ID)
	assert.NoError(t, err)
	intents, _ := f.store.ListIntents()
	assert.Empty(t, intents)

	assert.NoError(t, f.eng.Reject(context.Background(), d.ID))
}

func TestAccept_ConflictWhileClaimed(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d := f.draft(t, w.ID, "Busy")
	_, err := f.store.ClaimDraft(d.ID, "busy")
	require.NoError(t, err)

	_, err = f.eng.Accept(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, f.eng.Reject(context.Background(), d.ID), ErrConflict)
	assert.Empty(t, f.pub.published)
}

func TestAccept_ResumesPublishedIntent(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d := f.draft(t, w.ID, "Half done")
	intent, err := f.store.ClaimDraft(d.ID, "half-done")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkPublished(intent.ID, 55, ""))

	completed, err := f.eng.Accept(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, 55, completed.RemotePostID)
	assert.Empty(t, f.pub.published)
}

func TestReject(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d := f.draft(t, w.ID, "Nope")

	require.NoError(t, f.eng.Reject(context.Background(), d.ID))

	drafts, _ := f.store.ListDrafts()
	assert.Empty(t, drafts)
	n, _ := f.store.CountCompleted(w.ID)
	assert.Zero(t, n)
	assert.ErrorIs(t, f.eng.Reject(context.Background(), d.ID), ErrNotFound)
}

func TestAcceptAll_PartialFailure(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	d1 := f.draft(t, w.ID, "First")
	d2 := f.draft(t, w.ID, "Second")
	d3 := f.draft(t, w.ID, "Third")
	f.pub.failTitle["Second"] = &wordpress.Error{Stage: wordpress.StageUpload, StatusCode: 500, Body: "disk full"}

	batch, err := f.eng.AcceptAll(context.Background())
	require.NoError(t, err)

	require.Len(t, batch.Items, 3)
	assert.Equal(t, 2, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
	assert.Equal(t, d1.ID, batch.Items[0].ID)
	assert.Equal(t, StatusPublished, batch.Items[0].Status)
	assert.Equal(t, d2.ID, batch.Items[1].ID)
	assert.ErrorIs(t, batch.Items[1].Err, wordpress.ErrUpload)
	assert.Contains(t, batch.Items[1].Error, "disk full")
	assert.Equal(t, d3.ID, batch.Items[2].ID)
	assert.Error(t, batch.Err())

	drafts, _ := f.store.ListDrafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, d2.ID, drafts[0].ID)

	completed, _ := f.store.ListCompleted(w.ID)
	require.Len(t, completed, 2)
	titles := []string{completed[0].Title, completed[1].Title}
	assert.ElementsMatch(t, []string{"First", "Third"}, titles)
}

func TestRejectAll(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	f.draft(t, w.ID, "One")
	f.draft(t, w.ID, "Two")

	batch, err := f.eng.RejectAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Succeeded())
	assert.NoError(t, batch.Err())
	drafts, _ := f.store.ListDrafts()
	assert.Empty(t, drafts)
}

func TestReconcile(t *testing.T) {
	f := setup(t, WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
	w := f.website(t, "https://plasterers.test")

	published := f.draft(t, w.ID, "Published")
	in1, err := f.store.ClaimDraft(published.ID, "published")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkPublished(in1.ID, 7, ""))

	live := f.draft(t, w.ID, "Live")
	_, err = f.store.ClaimDraft(live.ID, "live")
	require.NoError(t, err)
	f.pub.live["live"] = &wordpress.RemotePost{ID: 8, Link: "https://plasterers.test/live/"}

	lost := f.draft(t, w.ID, "Lost")
	_, err = f.store.ClaimDraft(lost.ID, "lost")
	require.NoError(t, err)

	fresh := f.draft(t, w.ID, "Fresh")
	in4, err := f.store.ClaimDraft(fresh.ID, "fresh")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.PublishIntent{}).Where("id = ?", in4.ID).
		Update("created_at", time.Now().Add(time.Hour)).Error)

	batch, err := f.eng.Reconcile(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	statuses := map[uint]string{}
	for _, o := range batch.Items {
		statuses[o.ID] = o.Status
	}
	assert.Equal(t, StatusArchived, statuses[published.ID])
	assert.Equal(t, StatusArchived, statuses[live.ID])
	assert.Equal(t, StatusReleased, statuses[lost.ID])
	assert.Equal(t, StatusSkipped, statuses[fresh.ID])

	completed, _ := f.store.ListCompleted(w.ID)
	assert.Len(t, completed, 2)

	drafts, _ := f.store.ListDrafts()
	require.Len(t, drafts, 2)
	intents, _ := f.store.ListIntents()
	require.Len(t, intents, 1)
	assert.Equal(t, fresh.ID, intents[0].DraftID)

	assert.NoError(t, f.eng.Reject(context.Background(), lost.ID))
}

func TestStatuses(t *testing.T) {
	f := setup(t)
	w := f.website(t, "https://plasterers.test")
	f.draft(t, w.ID, "One")

	statuses, err := f.eng.Statuses()
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 6, statuses[0].Required)
	assert.Equal(t, int64(1), statuses[0].PendingCount)
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"Why Leeds Homes Love Lime Rendering!", "why-leeds-homes-love-lime-rendering"},
		{"Café Extensions in Königswinter", "cafe-extensions-in-konigswinter"},
		{"---Dashes---", "dashes"},
		{"a - b", "a-b"},
		{"!!!", "post"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSlug(tt.input))
		})
	}
}
