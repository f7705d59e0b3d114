package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/oauth"
)

// Scopes are the OAuth scopes requested for Controller2 calls.
var Scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/cloud_debugger",
}

// CredentialsFromJSON builds per-call credentials from a credentials JSON
// document (for example a service account key).
func CredentialsFromJSON(ctx context.Context, data []byte) (credentials.PerRPCCredentials, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return oauth.TokenSource{TokenSource: creds.TokenSource}, nil
}

// CredentialsFromInfo builds per-call credentials from decoded credentials info.
func CredentialsFromInfo(ctx context.Context, info map[string]any) (credentials.PerRPCCredentials, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials info: %w", err)
	}
	return CredentialsFromJSON(ctx, data)
}

// CredentialsFromFile builds per-call credentials from a credentials file.
func CredentialsFromFile(ctx context.Context, path string) (credentials.PerRPCCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return CredentialsFromJSON(ctx, data)
}
