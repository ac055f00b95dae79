// Package firestore provides persistent storage implementations using Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// locationDocument is the private struct used for Firestore marshalling. This keeps
// the public domain model in `pkg/locations` clean from persistence-specific tags.
type locationDocument struct {
	Name      string    `firestore:"name"`
	Latitude  float64   `firestore:"latitude"`
	Longitude float64   `firestore:"longitude"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// LocationsStore is a concrete implementation of the locations.Store interface using Firestore.
// Each document holds only the last-known position of one location.
type LocationsStore struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

// NewLocationsStore creates a new Firestore-backed store for locations.
func NewLocationsStore(client *firestore.Client) *LocationsStore {
	return &LocationsStore{
		client:     client,
		collection: client.Collection("locations"),
	}
}

func toLocationDocument(rec locations.Record) locationDocument {
	return locationDocument{
		Name:      rec.Name,
		Latitude:  rec.Position.Latitude,
		Longitude: rec.Position.Longitude,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toRecord(docID uuid.UUID, doc locationDocument) locations.Record {
	return locations.Record{
		ID:        docID,
		Name:      doc.Name,
		Position:  locations.Position{Latitude: doc.Latitude, Longitude: doc.Longitude},
		UpdatedAt: doc.UpdatedAt,
	}
}

// Save writes the record, replacing any previous position for the same ID.
func (s *LocationsStore) Save(ctx context.Context, rec locations.Record) error {
	doc := s.collection.Doc(rec.ID.String())
	_, err := doc.Set(ctx, toLocationDocument(rec))
	return err
}

// GetByID retrieves a record by its UUID.
func (s *LocationsStore) GetByID(ctx context.Context, id uuid.UUID) (locations.Record, error) {
	doc, err := s.collection.Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return locations.Record{}, fmt.Errorf("location with ID %s: %w", id, locations.ErrNotFound)
		}
		return locations.Record{}, err
	}

	var ld locationDocument
	if err := doc.DataTo(&ld); err != nil {
		return locations.Record{}, err
	}
	return toRecord(id, ld), nil
}

// List returns all records ordered by name.
func (s *LocationsStore) List(ctx context.Context) ([]locations.Record, error) {
	iter := s.collection.OrderBy("name", firestore.Asc).Documents(ctx)
	return processLocationIterator(iter)
}

// processLocationIterator is a helper to drain results from a Firestore iterator.
func processLocationIterator(iter *firestore.DocumentIterator) ([]locations.Record, error) {
	defer iter.Stop()
	var results []locations.Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var ld locationDocument
		if err := doc.DataTo(&ld); err != nil {
			return nil, err
		}
		docID, err := uuid.Parse(doc.Ref.ID)
		if err != nil {
			return nil, err // Should not happen if we control IDs
		}
		results = append(results, toRecord(docID, ld))
	}
	return results, nil
}
