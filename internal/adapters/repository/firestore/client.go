// Package firestore keeps polls as documents. Each poll lives at
// polls/{pollId} with its options in the polls/{pollId}/options
// subcollection, so a vote is a single atomic increment on one option
// document.
package firestore

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	pollsCollection         = "polls"
	optionsCollection       = "options"
	usersCollection         = "users"
	refreshTokensCollection = "refresh_tokens"
)

// NewClient connects to Firestore through a Firebase app. credentialsFile may
// be empty to use application default credentials, or when
// FIRESTORE_EMULATOR_HOST points at an emulator.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*gcfirestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect firestore: %w", err)
	}
	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
