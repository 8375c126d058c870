package store

import (
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"sitequill/categories"
	"sitequill/models"
)

// WebsiteSummary is a website with its derived blog counts.
type WebsiteSummary struct {
	models.Website
	PendingCount   int64 `json:"pending_count"`
	CompletedCount int64 `json:"completed_count"`
	TotalCount     int64 `json:"total_count"`
}

func (s *Store) CreateWebsite(w *models.Website) error {
	w.URL = normalizeURL(w.URL)
	if err := validateWebsite(w); err != nil {
		return err
	}
	if w.Username == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	if w.ApplicationPassword == "" {
		return &ValidationError{Field: "application_password", Reason: "is required"}
	}

	var taken int64
	if err := s.db.Model(&models.Website{}).Where("url = ?", w.URL).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return &ValidationError{Field: "url", Reason: "is already registered"}
	}

	if err := s.db.Create(w).Error; err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "url", Reason: "is already registered"}
		}
		return err
	}
	log.Printf("store: website %d created for %s", w.ID, w.URL)
	return nil
}

// UpdateWebsite replaces the editable fields of a website. The URL cannot be
// changed and an empty application password keeps the stored one.
func (s *Store) UpdateWebsite(id uint, in models.Website) (*models.Website, error) {
	w, err := s.GetWebsite(id)
	if err != nil {
		return nil, err
	}
	if in.URL != "" && normalizeURL(in.URL) != w.URL {
		return nil, &ValidationError{Field: "url", Reason: "cannot be changed"}
	}

	if in.Username != "" {
		w.Username = in.Username
	}
	if in.ApplicationPassword != "" {
		w.ApplicationPassword = in.ApplicationPassword
	}
	w.CompanyName = in.CompanyName
	w.PhoneNumber = in.PhoneNumber
	w.EmailAddress = in.EmailAddress
	w.StockCategory = in.StockCategory
	w.Keywords = in.Keywords
	w.Locations = in.Locations
	w.BlogAmountMonthly = in.BlogAmountMonthly
	w.BlogStartingDate = in.BlogStartingDate

	if err := validateWebsite(w); err != nil {
		return nil, err
	}
	if err := s.db.Save(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) GetWebsite(id uint) (*models.Website, error) {
	var w models.Website
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("website %d", id))
	}
	return &w, nil
}

func (s *Store) GetWebsiteByURL(rawURL string) (*models.Website, error) {
	var w models.Website
	u := normalizeURL(rawURL)
	if err := s.db.Where("url = ?", u).First(&w).Error; err != nil {
		return nil, notFound(err, "website "+u)
	}
	return &w, nil
}

func (s *Store) ListWebsites() ([]models.Website, error) {
	var websites []models.Website
	if err := s.db.Order("id ASC").Find(&websites).Error; err != nil {
		return nil, err
	}
	return websites, nil
}

func (s *Store) WebsiteSummaries() ([]WebsiteSummary, error) {
	websites, err := s.ListWebsites()
	if err != nil {
		return nil, err
	}
	summaries := make([]WebsiteSummary, 0, len(websites))
	for _, w := range websites {
		sum := WebsiteSummary{Website: w}
		if err := s.db.Model(&models.DraftBlog{}).Where("website_id = ?", w.ID).Count(&sum.PendingCount).Error; err != nil {
			return nil, err
		}
		if err := s.db.Model(&models.CompletedBlog{}).Where("website_id = ?", w.ID).Count(&sum.CompletedCount).Error; err != nil {
			return nil, err
		}
		sum.TotalCount = sum.PendingCount + sum.CompletedCount
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// DeleteWebsite removes a website together with its drafts, completed blogs
// and publish intents.
func (s *Store) DeleteWebsite(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var w models.Website
		if err := tx.First(&w, id).Error; err != nil {
			return notFound(err, fmt.Sprintf("website %d", id))
		}
		if err := tx.Where("website_id = ?", id).Delete(&models.PublishIntent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", id).Delete(&models.DraftBlog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", id).Delete(&models.CompletedBlog{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&w).Error; err != nil {
			return err
		}
		log.Printf("store: website %d (%s) deleted", id, w.URL)
		return nil
	})
}

func (s *Store) CountCompleted(websiteID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.CompletedBlog{}).Where("website_id = ?", websiteID).Count(&n).Error
	return n, err
}

func (s *Store) ListCompleted(websiteID uint) ([]models.CompletedBlog, error) {
	var blogs []models.CompletedBlog
	if err := s.db.Where("website_id = ?", websiteID).Order("created_at DESC").Find(&blogs).Error; err != nil {
		return nil, err
	}
	return blogs, nil
}

func validateWebsite(w *models.Website) error {
	u, err := url.Parse(w.URL)
	if w.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an http(s) address"}
	}
	if w.EmailAddress != "" {
		if _, err := mail.ParseAddress(w.EmailAddress); err != nil {
			return &ValidationError{Field: "email_address", Reason: "is not a valid email address"}
		}
	}
	if w.StockCategory != "" {
		if _, ok := categories.Lookup(w.StockCategory); !ok {
			return &ValidationError{Field: "stock_category", Reason: "is not a known category"}
		}
	}
	if w.BlogAmountMonthly < 0 {
		return &ValidationError{Field: "blog_amount_monthly", Reason: "cannot be negative"}
	}
	return nil
}

func normalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
