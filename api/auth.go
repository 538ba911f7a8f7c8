// Package api wraps the restaurant REST endpoints the console uses.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/models"
)

type Auth struct {
	client *apiclient.Client
}

func NewAuth(client *apiclient.Client) *Auth {
	return &Auth{client: client}
}

// LoginResult is what a successful login yields. The account kind is
// decoded here, at the authentication boundary.
type LoginResult struct {
	Account     models.Account
	AccessToken string
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *Auth) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var res struct {
		AccessToken string          `json:"accessToken"`
		User        json.RawMessage `json:"user"`
	}
	if err := a.client.Do(ctx, http.MethodPost, apiclient.LoginPath, creds, &res); err != nil {
		return LoginResult{}, err
	}
	if res.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("login response carried no access token")
	}
	account, err := models.DecodeAccount(res.User)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: account, AccessToken: res.AccessToken}, nil
}

func (a *Auth) Refresh(ctx context.Context) (string, error) {
	return a.client.Refresh(ctx)
}

func (a *Auth) Logout(ctx context.Context) error {
	return a.client.Do(ctx, http.MethodPost, apiclient.LogoutPath, nil, nil)
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup is a public endpoint answering with the raw account payload.
func (a *Auth) Signup(ctx context.Context, req SignupRequest) (models.Account, error) {
	var raw json.RawMessage
	if err := a.client.DoRaw(ctx, http.MethodPost, apiclient.SignupPath, req, &raw); err != nil {
		return models.Account{}, err
	}
	return models.DecodeAccount(raw)
}
