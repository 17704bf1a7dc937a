package supabase

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var authClient gotrue.Client

// AuthResult is the subset of the GoTrue response the server cares about.
type AuthResult struct {
	UserID    string
	Email     string
	Confirmed bool
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	// Remove any protocol prefix
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	// Split by the first dot to get just the project reference
	parts := strings.Split(url, ".")
	return parts[0]
}

// InitClient initializes the Supabase authentication client
func InitClient(supabaseURL, supabaseKey string) error {
	projectRef := extractProjectRef(supabaseURL)

	log.Printf("Initializing Supabase client with project reference: %s", projectRef)

	client := gotrue.New(projectRef, supabaseKey)
	authClient = client

	// Test the connection
	_, err := client.GetSettings()
	if err != nil {
		log.Printf("Supabase connection test failed: %v", err)
		return fmt.Errorf("failed to connect to Supabase: %w", err)
	}

	log.Printf("Supabase connection successful")
	return nil
}

// SetClient swaps the package-level client; tests use it to install a fake.
func SetClient(c gotrue.Client) {
	authClient = c
}

// GetClient returns the initialized Supabase authentication client
func GetClient() gotrue.Client {
	if authClient == nil {
		// Initialize with environment variables as fallback
		url := os.Getenv("SUPABASE_URL")
		key := os.Getenv("SUPABASE_ANON_KEY")

		if url == "" || key == "" {
			panic("SUPABASE_URL and SUPABASE_ANON_KEY environment variables must be set")
		}

		authClient = gotrue.New(extractProjectRef(url), key)
	}
	return authClient
}

// SignIn validates the provided credentials against Supabase auth and
// returns the authenticated user's identity.
func SignIn(email, password string) (*AuthResult, error) {
	client := GetClient()

	res, err := client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if res == nil || res.AccessToken == "" {
		return nil, fmt.Errorf("authentication failed: no session returned")
	}

	return &AuthResult{
		UserID:    res.User.ID.String(),
		Email:     res.User.Email,
		Confirmed: true,
	}, nil
}

// SignUp registers a new user. When email confirmation is disabled on the
// project a session is returned immediately and Confirmed is true; otherwise
// the account exists but stays unconfirmed until the email link is followed.
func SignUp(email, password string) (*AuthResult, error) {
	client := GetClient()

	res, err := client.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}

	return &AuthResult{
		UserID:    res.ID.String(),
		Email:     res.Email,
		Confirmed: res.AccessToken != "",
	}, nil
}
