package store

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sitequill/models"
)

func (s *Store) CreateDraft(d *models.DraftBlog) error {
	d.ContentHash = ContentHash(d.Title, d.Content)
	return s.db.Omit("Website").Create(d).Error
}

// GetDraft loads a draft with its website.
func (s *Store) GetDraft(id uint) (*models.DraftBlog, error) {
	var d models.DraftBlog
	if err := s.db.Preload("Website").First(&d, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("draft %d", id))
	}
	if d.Website == nil {
		return nil, fmt.Errorf("draft %d website %d: %w", id, d.WebsiteID, ErrNotFound)
	}
	return &d, nil
}

// ListDrafts returns every draft, oldest first, with its website.
func (s *Store) ListDrafts() ([]models.DraftBlog, error) {
	var drafts []models.DraftBlog
	if err := s.db.Preload("Website").Order("created_at ASC, id ASC").Find(&drafts).Error; err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *Store) CountDrafts(websiteID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.DraftBlog{}).Where("website_id = ?", websiteID).Count(&n).Error
	return n, err
}

// DeleteDraft discards a draft. Drafts with a publish in flight are refused.
func (s *Store) DeleteDraft(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var d models.DraftBlog
		if err := tx.First(&d, id).Error; err != nil {
			return notFound(err, fmt.Sprintf("draft %d", id))
		}
		var intents int64
		if err := tx.Model(&models.PublishIntent{}).Where("draft_id = ?", id).Count(&intents).Error; err != nil {
			return err
		}
		if intents > 0 {
			return fmt.Errorf("draft %d: %w", id, ErrConflict)
		}
		return tx.Delete(&d).Error
	})
}

// ClaimDraft records the intent to publish a draft. A published intent left
// by an interrupted accept is returned as is so the caller can finish it.
func (s *Store) ClaimDraft(draftID uint, slug string) (*models.PublishIntent, error) {
	var intent models.PublishIntent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var d models.DraftBlog
		if err := tx.First(&d, draftID).Error; err != nil {
			return notFound(err, fmt.Sprintf("draft %d", draftID))
		}

		res := tx.Where("draft_id = ?", draftID).Limit(1).Find(&intent)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if intent.State == models.IntentPublished {
				return nil
			}
			return fmt.Errorf("draft %d: %w", draftID, ErrConflict)
		}

		intent = models.PublishIntent{
			ID:        uuid.NewString(),
			DraftID:   draftID,
			WebsiteID: d.WebsiteID,
			Slug:      slug,
			State:     models.IntentPending,
		}
		if err := tx.Create(&intent).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("draft %d: %w", draftID, ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *Store) MarkPublished(intentID string, remotePostID int, remoteLink string) error {
	res := s.db.Model(&models.PublishIntent{}).Where("id = ?", intentID).Updates(map[string]any{
		"state":          models.IntentPublished,
		"remote_post_id": remotePostID,
		"remote_link":    remoteLink,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("publish intent %s: %w", intentID, ErrNotFound)
	}
	return nil
}

// ReleaseIntent drops an intent so the draft can be reviewed again.
func (s *Store) ReleaseIntent(intentID string) error {
	return s.db.Where("id = ?", intentID).Delete(&models.PublishIntent{}).Error
}

func (s *Store) ListIntents() ([]models.PublishIntent, error) {
	var intents []models.PublishIntent
	if err := s.db.Order("created_at ASC").Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

// FinalizeIntent archives the draft behind a published intent and removes
// both the draft and the intent in one transaction. A remote post is archived
// at most once, so running it again does not create a second completed blog.
func (s *Store) FinalizeIntent(intentID string) (*models.CompletedBlog, error) {
	var completed models.CompletedBlog
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var intent models.PublishIntent
		if err := tx.Where("id = ?", intentID).First(&intent).Error; err != nil {
			return notFound(err, "publish intent "+intentID)
		}
		if intent.State != models.IntentPublished {
			return fmt.Errorf("publish intent %s is %s, not published", intentID, intent.State)
		}

		var d models.DraftBlog
		res := tx.Limit(1).Find(&d, intent.DraftID)
		if res.Error != nil {
			return res.Error
		}

		// one completed blog per published post
		found := tx.Where("website_id = ? AND remote_post_id = ?", intent.WebsiteID, intent.RemotePostID).
			Limit(1).Find(&completed)
		if found.Error != nil {
			return found.Error
		}

		if res.RowsAffected == 0 {
			// draft already archived; only the intent is left
			if found.RowsAffected == 0 {
				return fmt.Errorf("completed blog for draft %d: %w", intent.DraftID, ErrNotFound)
			}
			return tx.Delete(&intent).Error
		}

		if found.RowsAffected == 0 {
			completed = models.CompletedBlog{
				WebsiteID:    d.WebsiteID,
				Title:        d.Title,
				Content:      d.Content,
				ContentHash:  d.ContentHash,
				RemotePostID: intent.RemotePostID,
				RemoteLink:   intent.RemoteLink,
			}
			if err := tx.Create(&completed).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&d).Error; err != nil {
			return err
		}
		return tx.Delete(&intent).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("store: draft archived as completed blog %d", completed.ID)
	return &completed, nil
}
