package api

import (
	"context"
	"fmt"
	"net/http"

	"listening/credential"
	"listening/log"
)

const (
	pathLogin      = "/api/members/login"
	pathSignup     = "/api/members/signup"
	pathLogout     = "/api/members/logout"
	pathUpdate     = "/api/members/update"
	pathEmailCheck = "/api/members/email-check"
	pathSendCode   = "/api/members/email-verification/send"
	pathVerifyCode = "/api/members/email-verification/verify"
)

// Login exchanges email and password for a token pair and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (credential.Credential, error) {
	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		JSON:   map[string]string{"email": email, "password": password},
	}, "")
	if err != nil {
		return credential.Credential{}, err
	}
	tokens, err := decode[tokenPair](resp)
	if err != nil {
		return credential.Credential{}, err
	}
	if tokens.AccessToken == "" {
		return credential.Credential{}, fmt.Errorf("%w: login returned no access token", ErrParse)
	}

	cred := credential.Credential{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if err := c.session.Login(cred); err != nil {
		return credential.Credential{}, fmt.Errorf("save credential: %w", err)
	}
	log.Infof("logged in, token %s", log.Redact(cred.AccessToken))
	return cred, nil
}

func (c *Client) Signup(ctx context.Context, nickname, email, password string) (string, error) {
	return c.plain(ctx, pathSignup, map[string]string{
		"nickname": nickname,
		"email":    email,
		"password": password,
	})
}

// CheckEmail succeeds when the address is not yet registered.
func (c *Client) CheckEmail(ctx context.Context, email string) (string, error) {
	return c.plain(ctx, pathEmailCheck, map[string]string{"email": email})
}

func (c *Client) SendVerificationCode(ctx context.Context, email string) (string, error) {
	return c.plain(ctx, pathSendCode, map[string]string{"email": email})
}

func (c *Client) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	return c.plain(ctx, pathVerifyCode, map[string]string{"email": email, "code": code})
}

func (c *Client) UpdateNickname(ctx context.Context, nickname string) (string, error) {
	if c.session.AccessToken() == "" {
		return "", ErrNotAuthenticated
	}
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPatch,
		Path:   pathUpdate,
		JSON:   map[string]string{"nickname": nickname},
	})
	if err != nil {
		return "", err
	}
	return check(resp)
}

// Logout revokes the refresh token. Stored credentials are cleared only when the
// server confirms; a failed logout leaves the session usable.
func (c *Client) Logout(ctx context.Context) (string, error) {
	cred, err := c.session.Credential()
	if err != nil {
		return "", err
	}
	if cred.Empty() {
		return "", ErrNotAuthenticated
	}

	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathLogout,
		JSON:   map[string]string{"refreshToken": cred.RefreshToken},
		Header: http.Header{refreshTokenHeader: []string{cred.RefreshToken}},
	})
	if err != nil {
		return "", err
	}
	msg, err := check(resp)
	if err != nil {
		return "", err
	}
	if err := c.session.Logout(); err != nil {
		return msg, fmt.Errorf("clear credential: %w", err)
	}
	log.Info("logged out")
	return msg, nil
}

// plain posts an unauthenticated JSON body to an endpoint without a payload.
func (c *Client) plain(ctx context.Context, path string, body any) (string, error) {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: path, JSON: body}, "")
	if err != nil {
		return "", err
	}
	return check(resp)
}
