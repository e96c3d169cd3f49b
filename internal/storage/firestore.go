package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/abuzaid911/uaepass-front/internal/crypto"
	"github.com/abuzaid911/uaepass-front/internal/log"
)

// FirestoreStore mirrors tokens to Google Cloud Firestore, encrypted at rest.
//
// Error handling strategy:
// - Read operations: return errors (a missing token must fail explicitly)
// - Delete on logout: log and continue (the in-memory token is already gone)
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
}

// Ensure FirestoreStore implements the TokenStore interface
var _ TokenStore = (*FirestoreStore)(nil)

// tokenDoc is the Firestore document shape. The access token field holds
// ciphertext only.
type tokenDoc struct {
	AccessToken string    `firestore:"access_token"`
	TokenType   string    `firestore:"token_type,omitempty"`
	ExpiresAt   time.Time `firestore:"expires_at,omitempty"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// NewFirestoreStore creates a Firestore-backed token store.
func NewFirestoreStore(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required for firestore storage")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = "uaepass_tokens"
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
	}, nil
}

// Put stores or replaces the token under key, encrypting the bearer value.
func (s *FirestoreStore) Put(ctx context.Context, key string, token *StoredToken) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	encrypted, err := s.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	doc := tokenDoc{
		AccessToken: encrypted,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
		UpdatedAt:   time.Now(),
	}
	if _, err := s.client.Collection(s.collection).Doc(key).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store token in Firestore: %w", err)
	}
	return nil
}

// Get retrieves and decrypts the token under key.
func (s *FirestoreStore) Get(ctx context.Context, key string) (*StoredToken, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token from Firestore: %w", err)
	}

	var doc tokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	accessToken, err := s.encryptor.Decrypt(doc.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	return &StoredToken{
		AccessToken: accessToken,
		TokenType:   doc.TokenType,
		ExpiresAt:   doc.ExpiresAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// Delete removes the token under key. Missing documents are not an error.
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		log.LogError("Failed to delete token from Firestore: %v", err)
		return fmt.Errorf("failed to delete token from Firestore: %w", err)
	}
	return nil
}

// DeleteExpired removes every stored token past its expiry. Run from a
// periodic job; a failure on one document does not stop the sweep.
func (s *FirestoreStore) DeleteExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", ">", time.Time{}).
		Where("expires_at", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("error iterating Firestore documents: %w", err)
		}

		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogError("Failed to delete expired token %s: %v", snap.Ref.ID, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.LogInfoWithFields("storage", "Removed expired tokens", map[string]any{
			"count": deleted,
		})
	}
	return deleted, nil
}

// Close releases the Firestore client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
