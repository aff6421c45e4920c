// Package contacts applies contact-derived labels to face index clusters by
// matching contact photos against the known identities.
package contacts

import (
	"context"
	"fmt"
	"log"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

// Contact is one address book entry with an optional photo.
type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Photo       []byte `json:"photo,omitempty"`
}

// Source supplies contacts from whatever address book backs the app.
type Source interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

// Summary aggregates the outcome of one sync pass. Per-contact failures are
// counted, not propagated.
type Summary struct {
	Labeled int `json:"labeled"`
	NoMatch int `json:"no_match"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Labeler matches contact photos against the face index and applies contact
// labels through the index's only contact-label entry point, so the
// manual-label-wins invariant is always respected.
type Labeler struct {
	provider    embedding.Provider
	index       *faceindex.Index
	maxDistance float64
}

// NewLabeler creates a contact labeler. maxDistance bounds how far a contact
// photo's face may be from a cluster to still label it; zero uses the
// index's link threshold.
func NewLabeler(provider embedding.Provider, index *faceindex.Index, maxDistance float64) *Labeler {
	if maxDistance <= 0 {
		maxDistance = index.Config().LinkThreshold
	}
	return &Labeler{
		provider:    provider,
		index:       index,
		maxDistance: maxDistance,
	}
}

// Sync runs one labeling pass over the given contacts. Contacts without an
// ID, name or photo are skipped; duplicate names (after normalization) are
// processed once; detection or embedding failures count as failed and do not
// abort the pass.
func (l *Labeler) Sync(ctx context.Context, list []Contact) (Summary, error) {
	var sum Summary
	seen := make(map[string]struct{}, len(list))

	for _, contact := range list {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if contact.ID == "" || contact.DisplayName == "" || len(contact.Photo) == 0 {
			sum.Skipped++
			continue
		}
		key := NormalizeName(contact.DisplayName)
		if _, dup := seen[key]; dup {
			sum.Skipped++
			continue
		}
		seen[key] = struct{}{}

		print, err := l.embedContactFace(ctx, contact)
		if err != nil {
			log.Printf("contact %s: %v", contact.ID, err)
			sum.Failed++
			continue
		}
		if print == nil {
			sum.NoMatch++
			continue
		}

		faceID, dist, ok := l.index.NearestMatch(*print)
		if !ok || dist > l.maxDistance {
			sum.NoMatch++
			continue
		}

		if l.index.SetContactLabel(faceID, contact.ID, contact.DisplayName, true) {
			sum.Labeled++
		} else {
			sum.Skipped++
		}
	}

	return sum, nil
}

// embedContactFace detects the most prominent face in the contact photo and
// embeds it. Returns (nil, nil) when the photo contains no face.
func (l *Labeler) embedContactFace(ctx context.Context, contact Contact) (*embedding.Print, error) {
	detections, err := l.provider.DetectFaces(ctx, contact.Photo)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(detections) == 0 {
		return nil, nil
	}

	// Pick the largest face; contact photos occasionally contain bystanders.
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}

	crop, err := embedding.CropFace(contact.Photo, best.BBox)
	if err != nil {
		return nil, fmt.Errorf("face crop failed: %w", err)
	}

	print, err := l.provider.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("face embedding failed: %w", err)
	}
	return &print, nil
}
