package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// FirestoreRepository stores one Firestore document per upload in a single collection.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreRepository(client *firestore.Client, collection string) *FirestoreRepository {
	return &FirestoreRepository{client: client, collection: collection}
}

func (r *FirestoreRepository) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	prepare(&doc, time.Now())

	coll := r.client.Collection(r.collection)
	if doc.ID != "" {
		// Create fails if the id is taken, so redelivered upload events do not clobber state.
		if _, err := coll.Doc(doc.ID).Create(ctx, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return r.Get(ctx, doc.ID)
			}
			return nil, fmt.Errorf("failed to create document %s: %w", doc.ID, err)
		}
		return &doc, nil
	}

	docRef, _, err := coll.Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	doc.ID = docRef.ID
	return &doc, nil
}

func (r *FirestoreRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return decode(snap)
}

func (r *FirestoreRepository) SetThumbnail(ctx context.Context, id, derivedKey string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "thumbnailPath", Value: derivedKey},
		{Path: "thumbnailStatus", Value: models.ThumbnailReady},
		{Path: "thumbnailError", Value: firestore.Delete},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (r *FirestoreRepository) MarkThumbnailFailed(ctx context.Context, id, reason string) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "thumbnailStatus", Value: models.ThumbnailFailed},
		{Path: "thumbnailError", Value: reason},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

// ListWithoutThumbnail selects on thumbnailPath, the same field HasThumbnail reads. A FAILED
// retry keeps an earlier preview, so the status alone would list documents that have one.
// The query needs a composite index on (thumbnailPath, createdAt).
func (r *FirestoreRepository) ListWithoutThumbnail(ctx context.Context, limit int) ([]*models.Document, error) {
	query := r.client.Collection(r.collection).
		Where("thumbnailPath", "==", "").
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	it := query.Documents(ctx)
	defer it.Stop()

	var out []*models.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents without thumbnail: %w", err)
		}
		doc, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *FirestoreRepository) update(ctx context.Context, id string, updates []firestore.Update) error {
	_, err := r.client.Collection(r.collection).Doc(id).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

func decode(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
