// Package identity talks to the Firebase-compatible identitytoolkit REST API.
// The gateway never mints or validates tokens itself; every bearer credential
// is introspected remotely (with a short-lived cache in the middleware layer).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/often-ai/gateway/common/config"
)

// ErrUnauthorized covers every verification failure: expired, malformed,
// revoked, or unknown tokens all look the same to callers.
var ErrUnauthorized = errors.New("invalid credential")

// ErrEmailExists is returned by SignUp for an already registered email.
var ErrEmailExists = errors.New("email already registered")

// Credentials is the token bundle issued by the identity backend.
type Credentials struct {
	Uid          string `json:"uid"`
	Email        string `json:"email"`
	IdToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type Client struct {
	baseURL  string
	tokenURL string
	apiKey   string
	http     *http.Client
}

func NewClient(baseURL string, tokenURL string, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.IdentityTimeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: tokenURL,
		apiKey:   apiKey,
		http:     httpClient,
	}
}

// Default is the process-wide client wired from configuration.
var Default = NewClient(config.IdentityBaseURL, config.IdentityTokenURL, config.FirebaseWebAPIKey, nil)

// backendError is the identitytoolkit error envelope.
type backendError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal identity request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+endpoint+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build identity request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "call identity backend")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read identity response")
	}
	if resp.StatusCode != http.StatusOK {
		var backend backendError
		_ = json.Unmarshal(data, &backend)
		switch {
		case strings.HasPrefix(backend.Error.Message, "EMAIL_EXISTS"):
			return ErrEmailExists
		case backend.Error.Message != "":
			return errors.Wrapf(ErrUnauthorized, "%s", backend.Error.Message)
		default:
			return errors.Wrapf(ErrUnauthorized, "identity backend returned %d", resp.StatusCode)
		}
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode identity response")
}

type signResponse struct {
	LocalId      string `json:"localId"`
	Email        string `json:"email"`
	IdToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignUp registers a new user and returns its issued credentials.
func (c *Client) SignUp(ctx context.Context, email string, password string) (*Credentials, error) {
	var resp signResponse
	err := c.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Uid:          resp.LocalId,
		Email:        resp.Email,
		IdToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// SignIn exchanges email and password for credentials.
func (c *Client) SignIn(ctx context.Context, email string, password string) (*Credentials, error) {
	var resp signResponse
	err := c.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Uid:          resp.LocalId,
		Email:        resp.Email,
		IdToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// Refresh exchanges a refresh token for a fresh id token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.tokenURL+"?key="+url.QueryEscape(c.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call token endpoint")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUnauthorized, "token endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		UserId       string `json:"user_id"`
		IdToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	return &Credentials{
		Uid:          payload.UserId,
		IdToken:      payload.IdToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// Verify introspects an id token and returns the owning uid and email.
// Any failure, remote or local, maps to ErrUnauthorized.
func (c *Client) Verify(ctx context.Context, idToken string) (uid string, email string, err error) {
	var resp struct {
		Users []struct {
			LocalId string `json:"localId"`
			Email   string `json:"email"`
		} `json:"users"`
	}
	if err := c.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return "", "", err
		}
		return "", "", errors.Wrap(ErrUnauthorized, err.Error())
	}
	if len(resp.Users) == 0 {
		return "", "", errors.Wrap(ErrUnauthorized, "token resolves to no user")
	}
	return resp.Users[0].LocalId, resp.Users[0].Email, nil
}
