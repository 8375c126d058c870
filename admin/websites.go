package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sitequill/models"
	"sitequill/store"
)

const dateLayout = "2006-01-02"

type websiteFields struct {
	Username            string `json:"username"`
	ApplicationPassword string `json:"application_password"`
	CompanyName         string `json:"company_name"`
	PhoneNumber         string `json:"phone_number"`
	EmailAddress        string `json:"email_address" binding:"omitempty,email"`
	StockCategory       string `json:"stock_category"`
	Keywords            string `json:"keywords"`
	Locations           string `json:"locations"`
	BlogAmountMonthly   int    `json:"blog_amount_monthly" binding:"gte=0"`
	BlogStartingDate    string `json:"blog_starting_date"`
}

type createWebsiteRequest struct {
	URL string `json:"url" binding:"required,url"`
	websiteFields
}

type updateWebsiteRequest struct {
	URL string `json:"url"`
	websiteFields
}

func (f websiteFields) toModel(url string) (models.Website, error) {
	w := models.Website{
		URL:                 url,
		Username:            strings.TrimSpace(f.Username),
		ApplicationPassword: f.ApplicationPassword,
		CompanyName:         strings.TrimSpace(f.CompanyName),
		PhoneNumber:         strings.TrimSpace(f.PhoneNumber),
		EmailAddress:        strings.TrimSpace(f.EmailAddress),
		StockCategory:       strings.TrimSpace(f.StockCategory),
		Keywords:            f.Keywords,
		Locations:           f.Locations,
		BlogAmountMonthly:   f.BlogAmountMonthly,
	}
	if f.BlogStartingDate != "" {
		start, err := time.Parse(dateLayout, f.BlogStartingDate)
		if err != nil {
			return w, &store.ValidationError{Field: "blog_starting_date", Reason: "must be a date like 2026-01-31"}
		}
		w.BlogStartingDate = start
	}
	return w, nil
}

func (a *AdminModule) listWebsites(c *gin.Context) {
	statuses, err := a.engine.Statuses()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (a *AdminModule) createWebsite(c *gin.Context) {
	var req createWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := req.toModel(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := a.store.CreateWebsite(&w); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (a *AdminModule) lookupWebsite(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	w, err := a.store.GetWebsiteByURL(url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *AdminModule) getWebsite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	w, err := a.store.GetWebsite(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *AdminModule) updateWebsite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in, err := req.toModel(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	w, err := a.store.UpdateWebsite(id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *AdminModule) deleteWebsite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := a.store.DeleteWebsite(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "website deleted"})
}

func (a *AdminModule) listCompleted(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := a.store.GetWebsite(id); err != nil {
		respondError(c, err)
		return
	}
	blogs, err := a.store.ListCompleted(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if blogs == nil {
		blogs = []models.CompletedBlog{}
	}
	c.JSON(http.StatusOK, blogs)
}

func (a *AdminModule) generate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := a.engine.Generate(c.Request.Context(), id)
	if err != nil {
		body := errorBody(err)
		if res != nil {
			body["result"] = res
		}
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *AdminModule) runAll(c *gin.Context) {
	websites, err := a.store.ListWebsites()
	if err != nil {
		respondError(c, err)
		return
	}
	batch := a.engine.RunAll(c.Request.Context(), websites)
	a.report("Run all", batch)
	respondBatch(c, batch)
}
