package admin

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"sitequill/cache"
	"sitequill/categories"
	"sitequill/generator"
	"sitequill/store"
	"sitequill/wordpress"
	"sitequill/workflow"
)

// Notifier receives the outcome of bulk runs.
type Notifier interface {
	SendBatchReport(title string, batch workflow.BatchResult) error
}

type AdminModule struct {
	store          *store.Store
	engine         *workflow.Engine
	notifier       Notifier
	reconcileAfter time.Duration
	logins         *loginLimiter
}

type Option func(*AdminModule)

func WithNotifier(n Notifier) Option {
	return func(a *AdminModule) { a.notifier = n }
}

// WithReconcileAfter sets how old a pending publish intent must be before
// the reconcile endpoint checks it against the website.
func WithReconcileAfter(d time.Duration) Option {
	return func(a *AdminModule) { a.reconcileAfter = d }
}

func NewAdminModule(s *store.Store, engine *workflow.Engine, opts ...Option) *AdminModule {
	a := &AdminModule{
		store:          s,
		engine:         engine,
		reconcileAfter: 15 * time.Minute,
		logins:         newLoginLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", a.loginPost)
	router.GET("/logout", a.logout)

	api := router.Group("/api")
	api.Use(a.requireAuth, cache.ETag())
	{
		api.GET("/categories", a.listCategories)

		api.GET("/websites", a.listWebsites)
		api.POST("/websites", a.createWebsite)
		api.GET("/websites/lookup", a.lookupWebsite)
		api.GET("/websites/:id", a.getWebsite)
		api.PUT("/websites/:id", a.updateWebsite)
		api.DELETE("/websites/:id", a.deleteWebsite)
		api.GET("/websites/:id/completed", a.listCompleted)
		api.POST("/websites/:id/generate", a.generate)
		api.POST("/generate/run-all", a.runAll)

		api.GET("/drafts", a.listDrafts)
		api.POST("/drafts/accept-all", a.acceptAll)
		api.POST("/drafts/reject-all", a.rejectAll)
		api.POST("/drafts/:id/accept", a.acceptDraft)
		api.POST("/drafts/:id/reject", a.rejectDraft)

		api.POST("/reconcile", a.reconcile)
	}
}

func (a *AdminModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

type loginRequest struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (a *AdminModule) loginPost(c *gin.Context) {
	if !a.logins.allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
		return
	}

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := a.store.Authenticate(req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidCredentials) {
			log.Printf("admin: login for %s: %v", req.Email, err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email})
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (a *AdminModule) listCategories(c *gin.Context) {
	names := categories.Names()
	out := make([]category, 0, len(names))
	for _, name := range names {
		id, _ := categories.Lookup(name)
		out = append(out, category{ID: id, Name: name})
	}
	c.JSON(http.StatusOK, out)
}

// report mails a bulk run summary when a notifier is configured.
func (a *AdminModule) report(title string, batch workflow.BatchResult) {
	if a.notifier == nil || len(batch.Items) == 0 {
		return
	}
	if err := a.notifier.SendBatchReport(title, batch); err != nil {
		log.Printf("admin: %s report: %v", title, err)
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrValidation), errors.Is(err, workflow.ErrMissingMetadata):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, generator.ErrGeneration),
		errors.Is(err, wordpress.ErrImageFetch),
		errors.Is(err, wordpress.ErrUpload),
		errors.Is(err, wordpress.ErrPublish),
		errors.Is(err, wordpress.ErrLookup):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	var missing *workflow.MissingMetadataError
	if errors.As(err, &missing) {
		body["missing"] = missing.Fields
	}
	var invalid *store.ValidationError
	if errors.As(err, &invalid) {
		body["field"] = invalid.Field
	}
	return body
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("admin: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, errorBody(err))
}

func respondBatch(c *gin.Context, batch workflow.BatchResult) {
	status := http.StatusOK
	if batch.Failed() > 0 {
		status = http.StatusMultiStatus
	}
	items := batch.Items
	if items == nil {
		items = []workflow.Outcome{}
	}
	c.JSON(status, gin.H{
		"items":     items,
		"succeeded": batch.Succeeded(),
		"failed":    batch.Failed(),
	})
}
