package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clipforge/internal/textutil"
)

// ProductContext carries the product identity a composition is for. The
// ID keys job naming; the title feeds thumbnail overlays.
type ProductContext struct {
	ID    string
	Title string
}

// ComposeRequest is the immutable input for one composition.
type ComposeRequest struct {
	VoiceURI   string
	VisualsURI string
	Script     string
	Product    ProductContext

	// JobID optionally pre-allocates the job identifier, letting the
	// caller subscribe to progress before submitting. Derived from the
	// product via NewJobID when empty.
	JobID string
}

// Validate rejects requests missing a source URI.
func (r ComposeRequest) Validate() error {
	if strings.TrimSpace(r.VoiceURI) == "" {
		return errors.New("voice source URI required")
	}
	if strings.TrimSpace(r.VisualsURI) == "" {
		return errors.New("visuals source URI required")
	}
	return nil
}

// CompositionResult is the outcome of one composition attempt sequence.
type CompositionResult struct {
	Success       bool
	JobID         string
	VideoURI      string
	ThumbnailURI  string
	Err           error
	Attempts      int
	ElapsedMillis int64
}

// NewJobID derives a filename-safe job identifier from the product
// identity plus a random token so resubmissions never collide.
func NewJobID(product ProductContext) string {
	token := uuid.NewString()[:8]
	name := textutil.SanitizeName(product.ID, "")
	if name == "" {
		return token
	}
	return fmt.Sprintf("%s-%s", name, token)
}

func (r ComposeRequest) jobID() string {
	if r.JobID != "" {
		return r.JobID
	}
	return NewJobID(r.Product)
}
