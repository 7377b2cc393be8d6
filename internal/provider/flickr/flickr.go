// Package flickr implements the cloud photo provider capability for Flickr:
// the OAuth1 three-legged handshake via dghubble/oauth1 and photoset access
// through the Flickr REST API.
package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dghubble/oauth1"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/provider"
)

// ProviderCode is the registry code for this provider.
const ProviderCode = "flickr"

const defaultRESTBaseURL = "https://api.flickr.com/services/rest"

// Endpoint holds Flickr's OAuth1 URLs.
var Endpoint = oauth1.Endpoint{
	RequestTokenURL: "https://www.flickr.com/services/oauth/request_token",
	AuthorizeURL:    "https://www.flickr.com/services/oauth/authorize",
	AccessTokenURL:  "https://www.flickr.com/services/oauth/access_token",
}

// invalid-token failure code in Flickr API responses
const errCodeInvalidAuthToken = 98

// Config holds the registered Flickr application credentials.
type Config struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
}

// Provider implements provider.Service for Flickr.
type Provider struct {
	config      *oauth1.Config
	httpClient  *http.Client
	restBaseURL string
}

// Option customizes a Provider; used by tests to point it at a fake server.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithRESTBaseURL overrides the REST endpoint.
func WithRESTBaseURL(baseURL string) Option {
	return func(p *Provider) { p.restBaseURL = baseURL }
}

// WithOAuthEndpoint overrides the OAuth1 handshake URLs.
func WithOAuthEndpoint(endpoint oauth1.Endpoint) Option {
	return func(p *Provider) { p.config.Endpoint = endpoint }
}

// New creates a Flickr provider from app credentials.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ConsumerKey == "" {
		return nil, fmt.Errorf("flickr: missing consumer key")
	}
	if cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("flickr: missing consumer secret")
	}
	p := &Provider{
		config: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			Endpoint:       Endpoint,
		},
		restBaseURL: defaultRESTBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RequestAuthorization runs the request-token leg and returns the URL the
// user must visit plus the request secret to hold until the callback.
func (p *Provider) RequestAuthorization(ctx context.Context, callbackURL string) (*provider.AuthorizationRequest, error) {
	cfg := *p.config
	cfg.CallbackURL = callbackURL
	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return nil, fmt.Errorf("flickr: request token: %w", err)
	}
	authURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return nil, fmt.Errorf("flickr: authorization url: %w", err)
	}
	// ask for read access only
	q := authURL.Query()
	q.Set("perms", "read")
	authURL.RawQuery = q.Encode()
	return &provider.AuthorizationRequest{URL: authURL.String(), Secret: requestSecret}, nil
}

// AuthorizeToken exchanges the callback's token and verifier, together with
// the held request secret, for an access token.
func (p *Provider) AuthorizeToken(ctx context.Context, token, secret, verifier string) (*domain.OAuthToken, error) {
	accessToken, accessSecret, err := p.config.AccessToken(token, secret, verifier)
	if err != nil {
		return nil, fmt.Errorf("flickr: access token exchange: %w", err)
	}
	return &domain.OAuthToken{AccessToken: accessToken, Secret: accessSecret}, nil
}

// AuthorizeCode is an OAuth2 entry point; Flickr is OAuth1 only.
func (p *Provider) AuthorizeCode(ctx context.Context, code string) (*domain.OAuthToken, error) {
	return nil, fmt.Errorf("%w: flickr uses the OAuth1 handshake", provider.ErrUnsupportedGrant)
}

// RefreshAccessToken is unsupported: OAuth1 access tokens do not expire and
// carry no refresh token, so the refresh policy never reaches this path.
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	return "", fmt.Errorf("%w: flickr tokens cannot be refreshed", provider.ErrUnsupportedGrant)
}

// AccountInfo resolves the token's owning account via flickr.test.login.
func (p *Provider) AccountInfo(ctx context.Context, token *domain.OAuthToken) (*provider.AccountInfo, error) {
	var resp struct {
		User struct {
			ID       string  `json:"id"`
			Username content `json:"username"`
		} `json:"user"`
	}
	if err := p.call(ctx, token, "flickr.test.login", nil, &resp); err != nil {
		return nil, err
	}
	return &provider.AccountInfo{
		ID:        resp.User.ID,
		FirstName: optional(resp.User.Username.Content),
	}, nil
}

// content is Flickr's wrapper for text values.
type content struct {
	Content string `json:"_content"`
}

type photoset struct {
	ID          string  `json:"id"`
	Photos      int     `json:"photos"`
	Title       content `json:"title"`
	Description content `json:"description"`
	Farm        int     `json:"farm"`
	Server      string  `json:"server"`
	Primary     string  `json:"primary"`
	Secret      string  `json:"secret"`
}

// Albums lists the account's photosets.
func (p *Provider) Albums(ctx context.Context, accountID string, token *domain.OAuthToken) ([]provider.Album, error) {
	var resp struct {
		Photosets struct {
			Photoset []photoset `json:"photoset"`
		} `json:"photosets"`
	}
	params := url.Values{"user_id": {accountID}}
	if err := p.call(ctx, token, "flickr.photosets.getList", params, &resp); err != nil {
		return nil, err
	}
	albums := make([]provider.Album, 0, len(resp.Photosets.Photoset))
	for _, ps := range resp.Photosets.Photoset {
		albums = append(albums, provider.Album{
			ID:         ps.ID,
			Name:       ps.Title.Content,
			PhotoCount: ps.Photos,
			CoverURL:   staticPhotoURL(ps.Farm, ps.Server, ps.Primary, ps.Secret, provider.ImageSizeThumb),
		})
	}
	return albums, nil
}

// AlbumInfo fetches one photoset's details.
func (p *Provider) AlbumInfo(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string) (*provider.AlbumInfo, error) {
	var resp struct {
		Photoset photoset `json:"photoset"`
	}
	params := url.Values{"photoset_id": {albumID}, "user_id": {accountID}}
	if err := p.call(ctx, token, "flickr.photosets.getInfo", params, &resp); err != nil {
		return nil, err
	}
	ps := resp.Photoset
	return &provider.AlbumInfo{
		Album: provider.Album{
			ID:         ps.ID,
			Name:       ps.Title.Content,
			PhotoCount: ps.Photos,
		},
		Description: ps.Description.Content,
	}, nil
}

// AlbumPhotos lists a page of a photoset's photos. The photoset API is
// page-based, not offset-based: the offset is aligned down to the nearest
// page boundary, so an offset that is not a multiple of the count starts
// earlier than requested.
func (p *Provider) AlbumPhotos(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string, page provider.Page) ([]provider.Photo, error) {
	count := page.Count
	if count <= 0 {
		count = 100
	}
	var resp struct {
		Photoset struct {
			Photo []struct {
				ID     string `json:"id"`
				Title  string `json:"title"`
				Farm   int    `json:"farm"`
				Server string `json:"server"`
				Secret string `json:"secret"`
			} `json:"photo"`
		} `json:"photoset"`
	}
	params := url.Values{
		"photoset_id": {albumID},
		"per_page":    {strconv.Itoa(count)},
		"page":        {strconv.Itoa(page.Offset/count + 1)},
	}
	if err := p.call(ctx, token, "flickr.photosets.getPhotos", params, &resp); err != nil {
		return nil, err
	}
	photos := make([]provider.Photo, 0, len(resp.Photoset.Photo))
	for _, ph := range resp.Photoset.Photo {
		photos = append(photos, provider.Photo{
			ID:           ph.ID,
			Title:        ph.Title,
			ThumbnailURL: staticPhotoURL(ph.Farm, ph.Server, ph.ID, ph.Secret, provider.ImageSizeThumb),
		})
	}
	return photos, nil
}

// PhotoURL looks up a photo's location fields and builds its static URL.
func (p *Provider) PhotoURL(ctx context.Context, photoID string, size provider.ImageSize, token *domain.OAuthToken) (string, error) {
	var resp struct {
		Photo struct {
			ID     string `json:"id"`
			Farm   int    `json:"farm"`
			Server string `json:"server"`
			Secret string `json:"secret"`
		} `json:"photo"`
	}
	params := url.Values{"photo_id": {photoID}}
	if err := p.call(ctx, token, "flickr.photos.getInfo", params, &resp); err != nil {
		return "", err
	}
	ph := resp.Photo
	return staticPhotoURL(ph.Farm, ph.Server, ph.ID, ph.Secret, size), nil
}

// sizeSuffix maps the generic sizes onto Flickr static URL suffixes.
var sizeSuffix = map[provider.ImageSize]string{
	provider.ImageSizeThumb:  "t",
	provider.ImageSizeSmall:  "m",
	provider.ImageSizeMedium: "z",
	provider.ImageSizeLarge:  "b",
}

func staticPhotoURL(farm int, server, id, secret string, size provider.ImageSize) string {
	if server == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("https://farm%d.staticflickr.com/%s/%s_%s_%s.jpg",
		farm, server, id, secret, sizeSuffix[size])
}

// call performs a signed Flickr REST request and decodes the JSON response,
// translating Flickr's invalid-auth-token failure code into the
// provider-level invalid-token signal.
func (p *Provider) call(ctx context.Context, token *domain.OAuthToken, method string, params url.Values, out any) error {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, p.httpClient)
	}
	client := p.config.Client(ctx, oauth1.NewToken(token.AccessToken, token.Secret))

	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("method", method)
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.restBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("flickr: create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("flickr: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: flickr returned status 401", provider.ErrInvalidToken)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flickr: %s returned status %d", method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("flickr: read response: %w", err)
	}

	var status struct {
		Stat    string `json:"stat"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("flickr: decode response: %w", err)
	}
	if status.Stat == "fail" {
		if status.Code == errCodeInvalidAuthToken {
			return fmt.Errorf("%w: %s", provider.ErrInvalidToken, status.Message)
		}
		return fmt.Errorf("flickr: %s failed: %s (code %d)", method, status.Message, status.Code)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("flickr: decode response: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
