package provider

import (
	"context"
	"fmt"

	"github.com/alexmt/plus2flickr/internal/domain"
)

// AccountInfo is the provider-agnostic shape of an external account's
// profile, fetched right after a handshake completes.
type AccountInfo struct {
	ID        string
	Email     *string
	FirstName *string
	LastName  *string
}

// AuthorizationRequest is the result of starting an OAuth1 handshake: the
// URL to send the user to, and the request secret that must be held until
// the verifier callback arrives.
type AuthorizationRequest struct {
	URL    string
	Secret string
}

// Album describes one photo album on a provider.
type Album struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PhotoCount int    `json:"photo_count"`
	CoverURL   string `json:"cover_url,omitempty"`
}

// AlbumInfo is an Album plus the detail fields only returned by the
// per-album endpoint.
type AlbumInfo struct {
	Album
	Description string `json:"description,omitempty"`
}

// Photo describes one photo inside an album.
type Photo struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Page selects a slice of an album's photos.
type Page struct {
	Offset int
	Count  int
}

// ImageSize selects which rendition of a photo to resolve a URL for.
type ImageSize string

const (
	ImageSizeThumb  ImageSize = "thumb"
	ImageSizeSmall  ImageSize = "small"
	ImageSizeMedium ImageSize = "medium"
	ImageSizeLarge  ImageSize = "large"
)

// ParseImageSize validates a size string coming from the boundary.
func ParseImageSize(s string) (ImageSize, error) {
	switch ImageSize(s) {
	case ImageSizeThumb, ImageSizeSmall, ImageSizeMedium, ImageSizeLarge:
		return ImageSize(s), nil
	default:
		return "", fmt.Errorf("%w: unknown image size %q", domain.ErrInvalidInput, s)
	}
}

// Service is the uniform capability interface every cloud photo provider
// implements. A provider supports exactly one of the two handshake entry
// points (AuthorizeToken for OAuth1, AuthorizeCode for OAuth2) and returns
// ErrUnsupportedGrant from the other. Data operations must fail with
// ErrInvalidToken (wrapped) when the provider rejects the access token, so
// the caller can tell a stale token apart from any other failure.
type Service interface {
	// RequestAuthorization starts an OAuth1 handshake (request token leg).
	RequestAuthorization(ctx context.Context, callbackURL string) (*AuthorizationRequest, error)

	// AuthorizeToken finishes an OAuth1 handshake.
	AuthorizeToken(ctx context.Context, token, secret, verifier string) (*domain.OAuthToken, error)

	// AuthorizeCode exchanges an OAuth2 authorization code.
	AuthorizeCode(ctx context.Context, code string) (*domain.OAuthToken, error)

	// RefreshAccessToken trades a refresh token for a new access token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)

	// AccountInfo fetches the external account's id and profile.
	AccountInfo(ctx context.Context, token *domain.OAuthToken) (*AccountInfo, error)

	Albums(ctx context.Context, accountID string, token *domain.OAuthToken) ([]Album, error)
	AlbumInfo(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string) (*AlbumInfo, error)
	AlbumPhotos(ctx context.Context, accountID string, token *domain.OAuthToken, albumID string, page Page) ([]Photo, error)
	PhotoURL(ctx context.Context, photoID string, size ImageSize, token *domain.OAuthToken) (string, error)
}
