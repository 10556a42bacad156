// README: Firebase Admin SDK initialisation and the identity collaborator's token verifier.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Identity is the already-verified caller handed to the HTTP layer.
type Identity struct {
	UID  string
	Role string
}

// TokenVerifier verifies a raw Firebase ID token and returns the caller identity.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier using the Firebase Admin SDK.
// An empty credentialsFile falls back to application-default credentials.
// Roles (donor, hospital, admin) are carried in the "role" custom claim.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &Identity{UID: token.UID, Role: RoleFromClaims(token.Claims)}, nil
}

// RoleFromClaims reads the role custom claim; tokens without one are donors.
func RoleFromClaims(claims map[string]interface{}) string {
	if role, ok := claims["role"].(string); ok && role != "" {
		return role
	}
	return "donor"
}
