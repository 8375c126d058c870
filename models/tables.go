package models

import (
	"strings"
	"time"
)

type User struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" keeps the hash out of API responses
}

// Website is a client WordPress site. URL is its identity.
type Website struct {
	ID                  uint      `gorm:"primary_key" json:"id"`
	URL                 string    `gorm:"unique;not null;index" json:"url"`
	Username            string    `gorm:"not null" json:"username"`
	ApplicationPassword string    `gorm:"not null" json:"-"`
	CompanyName         string    `json:"company_name"`
	PhoneNumber         string    `json:"phone_number"`
	EmailAddress        string    `json:"email_address"`
	StockCategory       string    `json:"stock_category"`
	Keywords            string    `gorm:"type:text" json:"keywords"`  // comma separated
	Locations           string    `gorm:"type:text" json:"locations"` // comma separated
	BlogAmountMonthly   int       `gorm:"default:0" json:"blog_amount_monthly"`
	BlogStartingDate    time.Time `json:"blog_starting_date"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (w Website) KeywordList() []string {
	return splitList(w.Keywords)
}

func (w Website) LocationList() []string {
	return splitList(w.Locations)
}

// DraftBlog is a generated post waiting for an accept or reject decision.
type DraftBlog struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	WebsiteID   uint      `gorm:"not null;index" json:"website_id"`
	Website     *Website  `json:"website,omitempty"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	ContentHash string    `gorm:"index" json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// CompletedBlog is the archive entry written after a successful publish.
type CompletedBlog struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	WebsiteID    uint      `gorm:"not null;index" json:"website_id"`
	Title        string    `gorm:"not null" json:"title"`
	Content      string    `gorm:"type:text" json:"content"`
	ContentHash  string    `gorm:"index" json:"content_hash"`
	RemotePostID int       `gorm:"index" json:"remote_post_id"`
	RemoteLink   string    `json:"remote_link"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	IntentPending   = "pending"
	IntentPublished = "published"
)

// PublishIntent is written before a draft is pushed to WordPress and removed once
// the draft has been archived. A leftover row means the accept was interrupted.
type PublishIntent struct {
	ID           string    `gorm:"primary_key" json:"id"`
	DraftID      uint      `gorm:"not null;uniqueIndex" json:"draft_id"`
	WebsiteID    uint      `gorm:"not null;index" json:"website_id"`
	Slug         string    `gorm:"not null" json:"slug"`
	State        string    `gorm:"not null;default:'pending'" json:"state"`
	RemotePostID int       `json:"remote_post_id"`
	RemoteLink   string    `json:"remote_link"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
