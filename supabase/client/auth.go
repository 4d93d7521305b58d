package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClient handles backend authentication.
type AuthClient struct {
	client *Client
}

// Session is the authenticated state returned by sign-in and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// User is a backend auth user.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	CreatedAt string         `json:"created_at"`
	Metadata  map[string]any `json:"user_metadata"`
}

// ExpiresAt returns the access token's expiry from its JWT claims. The token
// is decoded unverified: signature validation is the backend's job, this
// layer only needs the timestamp to schedule refreshes. Returns the zero
// time when the token is absent or malformed.
func (s *Session) ExpiresAt() time.Time {
	if s == nil || s.AccessToken == "" {
		return time.Time{}
	}
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(s.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// SignUp registers a new user.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return a.tokenRequest(ctx, a.client.baseURL+"/auth/v1/signup", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignInWithPassword authenticates with email and password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.tokenRequest(ctx, a.client.baseURL+"/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshSession exchanges a refresh token for a new session.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return a.tokenRequest(ctx, a.client.baseURL+"/auth/v1/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// CurrentUser fetches the user behind an access token.
func (a *AuthClient) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := a.client.newRequest(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (a *AuthClient) tokenRequest(ctx context.Context, url string, payload map[string]string) (*Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal auth payload: %w", err)
	}
	req, err := a.client.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var session Session
	if err := resp.JSON(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
