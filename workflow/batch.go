package workflow

import (
	"errors"
	"fmt"
)

const (
	StatusGenerated = "generated"
	StatusSkipped   = "skipped"
	StatusPublished = "published"
	StatusRejected  = "rejected"
	StatusArchived  = "archived"
	StatusReleased  = "released"
	StatusFailed    = "failed"
)

// Outcome is the result for one item of a batch.
type Outcome struct {
	ID      uint   `json:"id"`
	Label   string `json:"label"`
	Status  string `json:"status"`
	Created int    `json:"created,omitempty"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
}

// BatchResult collects one Outcome per item, in processing order.
type BatchResult struct {
	Items []Outcome `json:"items"`
}

func (b *BatchResult) add(o Outcome, err error) {
	if err != nil {
		o.Err = err
		o.Error = err.Error()
		o.Status = StatusFailed
	}
	b.Items = append(b.Items, o)
}

func (b BatchResult) Succeeded() int {
	return len(b.Items) - b.Failed()
}

func (b BatchResult) Failed() int {
	n := 0
	for _, o := range b.Items {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the item failures, or returns nil when every item succeeded.
func (b BatchResult) Err() error {
	var errs []error
	for _, o := range b.Items {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Label, o.Err))
		}
	}
	return errors.Join(errs...)
}
