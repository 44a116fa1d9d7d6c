// Package oauthx adapta un proveedor OAuth 2.0 externo (Google, GitHub) al
// contrato mínimo que necesita el flow de login social: armar la URL de
// autorización y canjear el code por un perfil.
package oauthx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Profile es lo que el flow necesita del proveedor.
type Profile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (Profile, error)
}

// Config de un proveedor.
type Config struct {
	Name         string // "google" | "github"
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Overrides (tests / proveedores self-hosted)
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type oauth2Provider struct {
	name     string
	conf     *oauth2.Config
	userInfo string
	decode   func(ctx context.Context, p *oauth2Provider, client *http.Client) (Profile, error)
	http     *http.Client
}

// New construye el proveedor según cfg.Name.
func New(cfg Config) (Provider, error) {
	p := &oauth2Provider{
		name: cfg.Name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
	switch cfg.Name {
	case "google":
		p.conf.Endpoint = endpoints.Google
		p.userInfo = "https://openidconnect.googleapis.com/v1/userinfo"
		p.decode = decodeOIDC
		if len(p.conf.Scopes) == 0 {
			p.conf.Scopes = []string{"openid", "email", "profile"}
		}
	case "github":
		p.conf.Endpoint = endpoints.GitHub
		p.userInfo = "https://api.github.com/user"
		p.decode = decodeGitHub
		if len(p.conf.Scopes) == 0 {
			p.conf.Scopes = []string{"user:email", "read:user"}
		}
	default:
		return nil, fmt.Errorf("oauthx: unknown provider %q", cfg.Name)
	}
	if cfg.AuthURL != "" {
		p.conf.Endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		p.conf.Endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		p.userInfo = cfg.UserInfoURL
	}
	return p, nil
}

func (p *oauth2Provider) Name() string { return p.name }

func (p *oauth2Provider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oauth2Provider) Exchange(ctx context.Context, code string) (Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("oauthx: exchange: %w", err)
	}
	prof, err := p.decode(ctx, p, p.conf.Client(ctx, tok))
	if err != nil {
		return Profile{}, err
	}
	prof.Provider = p.name
	prof.Email = strings.ToLower(strings.TrimSpace(prof.Email))
	return prof, nil
}

func getJSON(ctx context.Context, c *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oauthx: %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeOIDC(ctx context.Context, p *oauth2Provider, c *http.Client) (Profile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, c, p.userInfo, &info); err != nil {
		return Profile{}, err
	}
	if info.Sub == "" || info.Email == "" {
		return Profile{}, fmt.Errorf("oauthx: userinfo without sub/email")
	}
	return Profile{Subject: info.Sub, Email: info.Email, EmailVerified: info.EmailVerified, Name: info.Name}, nil
}

// GitHub no expone email verificado en /user: se busca en /user/emails.
func decodeGitHub(ctx context.Context, p *oauth2Provider, c *http.Client) (Profile, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, c, p.userInfo, &user); err != nil {
		return Profile{}, err
	}
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, c, strings.TrimSuffix(p.userInfo, "/user")+"/user/emails", &emails); err != nil {
		return Profile{}, err
	}
	prof := Profile{Subject: fmt.Sprintf("%d", user.ID), Name: user.Name}
	if prof.Name == "" {
		prof.Name = user.Login
	}
	// primario verificado, si no cualquier verificado
	for _, e := range emails {
		if e.Primary && e.Verified {
			prof.Email, prof.EmailVerified = e.Email, true
			return prof, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			prof.Email, prof.EmailVerified = e.Email, true
			return prof, nil
		}
	}
	return Profile{}, fmt.Errorf("oauthx: github account has no verified email")
}
