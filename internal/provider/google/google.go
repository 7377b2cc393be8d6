// Package google implements the cloud photo provider capability for Google
// accounts: OAuth2 code-grant handshake via golang.org/x/oauth2 and album /
// photo access through the Picasa Web Albums JSON feed.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/provider"
)

// ProviderCode is the registry code for this provider.
const ProviderCode = "google"

const (
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultFeedBaseURL = "https://picasaweb.google.com/data/feed/api"
)

// DefaultScopes covers sign-in profile data plus the photo feed.
func DefaultScopes() []string {
	return []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
		"https://picasaweb.google.com/data/",
	}
}

// Config holds the registered OAuth2 application credentials.
type Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// Provider implements provider.Service for Google.
type Provider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
	feedBaseURL string
}

// Option customizes a Provider; used by tests to point it at a fake server.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client used for API and token calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithEndpoints overrides the userinfo and feed base URLs.
func WithEndpoints(userInfoURL, feedBaseURL string) Option {
	return func(p *Provider) {
		p.userInfoURL = userInfoURL
		p.feedBaseURL = feedBaseURL
	}
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(p *Provider) { p.config.Endpoint.TokenURL = tokenURL }
}

// New creates a Google provider from app credentials.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: missing client id")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("google: missing client secret")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	p := &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     googleoauth.Endpoint,
		},
		httpClient:  http.DefaultClient,
		userInfoURL: defaultUserInfoURL,
		feedBaseURL: defaultFeedBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RequestAuthorization is an OAuth1 entry point; Google is OAuth2 only.
func (p *Provider) RequestAuthorization(ctx context.Context, callbackURL string) (*provider.AuthorizationRequest, error) {
	return nil, fmt.Errorf("%w: google uses the OAuth2 code grant", provider.ErrUnsupportedGrant)
}

// AuthorizeToken is an OAuth1 entry point; Google is OAuth2 only.
func (p *Provider) AuthorizeToken(ctx context.Context, token, secret, verifier string) (*domain.OAuthToken, error) {
	return nil, fmt.Errorf("%w: google uses the OAuth2 code grant", provider.ErrUnsupportedGrant)
}

// AuthorizeCode exchanges an authorization code for an access/refresh token
// pair.
func (p *Provider) AuthorizeCode(ctx context.Context, code string) (*domain.OAuthToken, error) {
	tok, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("google: code exchange: %w", err)
	}
	return &domain.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// RefreshAccessToken trades a refresh token for a fresh access token. A
// rejected refresh token surfaces as the invalid-token signal so the caller
// does not keep retrying with it.
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest ||
				retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return "", fmt.Errorf("%w: refresh rejected: %v", provider.ErrInvalidToken, err)
		}
		return "", fmt.Errorf("google: token refresh: %w", err)
	}
	return tok.AccessToken, nil
}

// AccountInfo fetches the Google account id and profile fields.
func (p *Provider) AccountInfo(ctx context.Context, token *domain.OAuthToken) (*provider.AccountInfo, error) {
	var info struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := p.getJSON(ctx, p.userInfoURL, token, &info); err != nil {
		return nil, err
	}
	return &provider.AccountInfo{
		ID:        info.ID,
		Email:     optional(info.Email),
		FirstName: optional(info.GivenName),
		LastName:  optional(info.FamilyName),
	}, nil
}

// Picasa feed JSON wraps every leaf value in an object with a "$t" key.
type feedText struct {
	T string `json:"$t"`
}

type feedEntry struct {
	ID        feedText `json:"gphoto$id"`
	Title     feedText `json:"title"`
	Summary   feedText `json:"summary"`
	NumPhotos struct {
		T int `json:"$t"`
	} `json:"gphoto$numphotos"`
	Media struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"media$thumbnail"`
		Contents []struct {
			URL string `json:"url"`
		} `json:"media$content"`
	} `json:"media$group"`
	Content struct {
		Src string `json:"src"`
	} `json:"content"`
}

type feedResponse struct {
	Feed struct {
		ID        feedText    `json:"gphoto$id"`
		Title     feedText    `json:"title"`
		Subtitle  feedText    `json:"subtitle"`
		NumPhotos struct {
			T int `json:"$t"`
		} `json:"gphoto$numphotos"`
		Entries []feedEntry `json:"entry"`
	} `json:"feed"`
}

// Albums lists the account's albums.
func (p *Provider) Albums(ctx context.Context, accountID string, token *domain.OAuthToken) ([]provider.Album, error) {
	endpoint := fmt.Sprintf("%s/user/%s?alt=json&kind=album", p.feedBaseURL, url.PathEscape(accountID))
	var resp feedResponse
	if err := p.getJSON(ctx, endpoint, token, &resp); err != nil {
		return nil, err
	}
	albums := make([]provider.Album, 0, len(resp.Feed.Entries))
	for _, e := range resp.Feed.Entries {
		albums = append(albums, provider.Album{
			ID:         e.ID.T,
			Name:       e.Title.T,
			PhotoCount: e.NumPhotos.T,
			CoverURL:   firstThumbnail(e),
		})
	}
	return albums, nil
}

// AlbumInfo fetches one album's detail feed.
func (p *Provider) AlbumInfo(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string) (*provider.AlbumInfo, error) {
	endpoint := fmt.Sprintf("%s/user/%s/albumid/%s?alt=json",
		p.feedBaseURL, url.PathEscape(accountID), url.PathEscape(albumID))
	var resp feedResponse
	if err := p.getJSON(ctx, endpoint, token, &resp); err != nil {
		return nil, err
	}
	return &provider.AlbumInfo{
		Album: provider.Album{
			ID:         resp.Feed.ID.T,
			Name:       resp.Feed.Title.T,
			PhotoCount: resp.Feed.NumPhotos.T,
		},
		Description: resp.Feed.Subtitle.T,
	}, nil
}

// AlbumPhotos lists a page of an album's photos. The feed is 1-indexed.
func (p *Provider) AlbumPhotos(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string, page provider.Page) ([]provider.Photo, error) {
	endpoint := fmt.Sprintf("%s/user/%s/albumid/%s?alt=json&kind=photo&start-index=%d&max-results=%d",
		p.feedBaseURL, url.PathEscape(accountID), url.PathEscape(albumID), page.Offset+1, page.Count)
	var resp feedResponse
	if err := p.getJSON(ctx, endpoint, token, &resp); err != nil {
		return nil, err
	}
	photos := make([]provider.Photo, 0, len(resp.Feed.Entries))
	for _, e := range resp.Feed.Entries {
		photos = append(photos, provider.Photo{
			ID:           e.ID.T,
			Title:        e.Title.T,
			ThumbnailURL: firstThumbnail(e),
		})
	}
	return photos, nil
}

// imgMax maps the generic image sizes onto feed imgmax pixel bounds.
var imgMax = map[provider.ImageSize]int{
	provider.ImageSizeThumb:  160,
	provider.ImageSizeSmall:  320,
	provider.ImageSizeMedium: 800,
	provider.ImageSizeLarge:  1600,
}

// PhotoURL resolves the direct content URL for one photo at the given size.
func (p *Provider) PhotoURL(ctx context.Context, photoID string, size provider.ImageSize, token *domain.OAuthToken) (string, error) {
	endpoint := fmt.Sprintf("%s/user/default/photoid/%s?alt=json&imgmax=%d",
		p.feedBaseURL, url.PathEscape(photoID), imgMax[size])
	var resp struct {
		Entry feedEntry `json:"entry"`
	}
	if err := p.getJSON(ctx, endpoint, token, &resp); err != nil {
		return "", err
	}
	if resp.Entry.Content.Src == "" {
		return "", fmt.Errorf("google: photo %s has no content url", photoID)
	}
	return resp.Entry.Content.Src, nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, token *domain.OAuthToken, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: google returned status %d", provider.ErrInvalidToken, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("google: unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("google: decode response: %w", err)
	}
	return nil
}

// clientContext threads the configured HTTP client into oauth2 calls.
func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func firstThumbnail(e feedEntry) string {
	if len(e.Media.Thumbnails) > 0 {
		return e.Media.Thumbnails[0].URL
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
