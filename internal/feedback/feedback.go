// Package feedback implements the append-only audit log of human review of
// automated thesis-fit judgments. Entries are deduplicated on write by a
// content signature and never mutated after creation.
package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strata-vc/dealdesk/pkg/pagination"
)

// Agreement values for a feedback entry.
const (
	AgreementAgree    = "agree"
	AgreementDisagree = "disagree"
	AgreementPartial  = "partial"
)

// Entry is one thesis-fit feedback record.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	RecordID  string    `json:"record_id"`
	Verdict   string    `json:"verdict"`
	Agreement string    `json:"agreement"`
	Comment   string    `json:"comment,omitempty"`
	Reviewer  string    `json:"reviewer,omitempty"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendCommand carries the data needed to record feedback.
type AppendCommand struct {
	RecordID  string `json:"record_id"`
	Verdict   string `json:"verdict"`
	Agreement string `json:"agreement"`
	Comment   string `json:"comment,omitempty"`
	Reviewer  string `json:"reviewer,omitempty"`
}

// Signature computes the content signature used for write deduplication.
// Two submissions with identical content hash to the same signature.
func (c *AppendCommand) Signature() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		c.RecordID,
		strings.TrimSpace(c.Verdict),
		strings.TrimSpace(c.Agreement),
		strings.TrimSpace(c.Comment),
		strings.TrimSpace(c.Reviewer),
	)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *AppendCommand) validate() error {
	if c.RecordID == "" {
		return fmt.Errorf("%w: record id required", ErrInvalidEntry)
	}
	switch c.Agreement {
	case AgreementAgree, AgreementDisagree, AgreementPartial:
	default:
		return fmt.Errorf("%w: agreement must be agree, disagree, or partial", ErrInvalidEntry)
	}
	return nil
}

// System defines the public contract for feedback operations. There are no
// update or delete operations: the log is append-only.
type System interface {
	Handler() *Handler

	// Append records an entry. A duplicate signature returns the existing
	// entry rather than an error.
	Append(ctx context.Context, cmd AppendCommand) (*Entry, error)
	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Entry], error)
}
