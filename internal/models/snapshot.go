package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CrawlSnapshot is the stored content of a listing page at a point in time.
// Immutable once written; the hash drives change detection.
type CrawlSnapshot struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	URL         string    `json:"url"`
	HTMLContent string    `json:"html_content"`
	HTMLHash    string    `json:"html_hash"` // sha256 of HTMLContent
	StatusCode  int       `json:"status_code"`
	Rendered    bool      `json:"rendered"` // browser used
	CrawledAt   time.Time `json:"crawled_at"`
}

// HashContent computes the content digest used for change detection
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
