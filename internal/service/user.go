package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/metrics"
	"github.com/alexmt/plus2flickr/internal/provider"
)

// UserStore defines the user persistence interface consumed by UserService.
// Implementations must serialize mutating operations per user (optimistic
// versioning or per-key locking): the service reads, mutates in memory and
// writes back without taking locks of its own.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByLinkedAccount(ctx context.Context, accountID, providerCode string) (*domain.User, error)
	Add(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Remove(ctx context.Context, user *domain.User) error
}

// UserService implements account linking, the token refresh policy and the
// authenticated photo operations on top of the provider registry.
type UserService struct {
	users     UserStore
	providers *provider.Registry
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, providers *provider.Registry) *UserService {
	return &UserService{users: users, providers: providers}
}

// Providers exposes the provider registry for boundary view models.
func (s *UserService) Providers() *provider.Registry {
	return s.providers
}

// FindUser retrieves a user by id.
func (s *UserService) FindUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// CreateUser creates a user with no linked accounts yet.
func (s *UserService) CreateUser(ctx context.Context) (*domain.User, error) {
	user := domain.NewUser(uuid.NewString())
	if err := s.users.Add(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the user and everything linked to it.
func (s *UserService) DeleteUser(ctx context.Context, user *domain.User) error {
	return s.users.Remove(ctx, user)
}

// UpdateUserInfo replaces the profile with user-supplied values. Unlike
// enrichment after a handshake, an explicit update overwrites every field.
func (s *UserService) UpdateUserInfo(ctx context.Context, user *domain.User, info domain.UserInfo) error {
	user.Info = info
	return s.users.Update(ctx, user)
}

// RemoveProvider unlinks a provider account. Removing a provider that was
// never linked is a no-op; removing the last linked account is refused so
// the user cannot lock themselves out.
func (s *UserService) RemoveProvider(ctx context.Context, user *domain.User, providerCode string) error {
	if _, ok := user.Accounts[providerCode]; !ok {
		return nil
	}
	if len(user.Accounts) == 1 {
		return fmt.Errorf("%w: %s", domain.ErrCannotRemoveLastAccount, providerCode)
	}
	delete(user.Accounts, providerCode)
	return s.users.Update(ctx, user)
}

// AuthorizationURL starts an OAuth1 handshake: it obtains a request
// token/secret pair from the provider, stores the secret as the pending
// request for that provider and returns the URL to redirect the user to.
func (s *UserService) AuthorizationURL(ctx context.Context, user *domain.User, callbackURL, providerCode string) (string, error) {
	svc, err := s.providers.Get(providerCode)
	if err != nil {
		return "", err
	}
	req, err := svc.RequestAuthorization(ctx, callbackURL)
	if err != nil {
		return "", err
	}
	if user.RequestSecrets == nil {
		user.RequestSecrets = map[string]string{}
	}
	user.RequestSecrets[providerCode] = req.Secret
	if err := s.users.Update(ctx, user); err != nil {
		return "", err
	}
	return req.URL, nil
}

// AuthorizeOAuth1 finishes an OAuth1 handshake with the token and verifier
// from the provider callback. The pending request secret is consumed
// exactly once; a callback with no pending request fails with
// ErrNoPendingRequest.
func (s *UserService) AuthorizeOAuth1(ctx context.Context, user *domain.User, token, verifier, providerCode string) error {
	secret, ok := user.RequestSecrets[providerCode]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNoPendingRequest, providerCode)
	}
	delete(user.RequestSecrets, providerCode)
	err := s.authorize(ctx, user, providerCode, func(svc provider.Service) (*domain.OAuthToken, error) {
		return svc.AuthorizeToken(ctx, token, secret, verifier)
	})
	if err != nil {
		return err
	}
	metrics.Authorizations.WithLabelValues(providerCode, "oauth1").Inc()
	return nil
}

// AuthorizeOAuth2 links a provider account using an OAuth2 authorization
// code.
func (s *UserService) AuthorizeOAuth2(ctx context.Context, user *domain.User, authCode, providerCode string) error {
	err := s.authorize(ctx, user, providerCode, func(svc provider.Service) (*domain.OAuthToken, error) {
		return svc.AuthorizeCode(ctx, authCode)
	})
	if err != nil {
		return err
	}
	metrics.Authorizations.WithLabelValues(providerCode, "oauth2").Inc()
	return nil
}

// authorize runs the shared post-handshake procedure: complete the grant,
// fetch the linked account's profile, reject a provider slot swap, fold in
// any other identity that already owns this account, install the link,
// enrich the profile and persist.
func (s *UserService) authorize(ctx context.Context, user *domain.User, providerCode string, grant func(provider.Service) (*domain.OAuthToken, error)) error {
	svc, err := s.providers.Get(providerCode)
	if err != nil {
		return err
	}
	token, err := grant(svc)
	if err != nil {
		return err
	}
	info, err := svc.AccountInfo(ctx, token)
	if err != nil {
		return err
	}

	if existing, ok := user.Accounts[providerCode]; ok && existing.ID != info.ID {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccountType, providerCode)
	}

	owner, err := s.users.FindByLinkedAccount(ctx, info.ID, providerCode)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	merged := owner != nil && owner.ID != user.ID
	if merged {
		user.Merge(owner)
	}

	if user.Accounts == nil {
		user.Accounts = map[string]domain.OAuthData{}
	}
	user.Accounts[providerCode] = domain.OAuthData{ID: info.ID, Token: *token}
	enrichUserInfo(&user.Info, info)

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if merged {
		// The duplicate is only removed after the merged identity is safely
		// persisted, so a failure cannot lose accounts.
		if err := s.users.Remove(ctx, owner); err != nil {
			return fmt.Errorf("remove merged user %s: %w", owner.ID, err)
		}
		metrics.IdentityMerges.Inc()
		slog.Info("merged duplicate identity",
			"user_id", user.ID, "merged_id", owner.ID, "provider", providerCode)
	}
	return nil
}

// enrichUserInfo fills profile fields from provider account info without
// overwriting anything the user already has.
func enrichUserInfo(info *domain.UserInfo, acct *provider.AccountInfo) {
	if info.Email == nil {
		info.Email = acct.Email
	}
	if info.FirstName == nil {
		info.FirstName = acct.FirstName
	}
	if info.LastName == nil {
		info.LastName = acct.LastName
	}
}

// Albums lists the user's albums on one provider.
func (s *UserService) Albums(ctx context.Context, user *domain.User, providerCode string) ([]provider.Album, error) {
	return callProvider(ctx, s, user, providerCode,
		func(svc provider.Service, acct *domain.OAuthData) ([]provider.Album, error) {
			return svc.Albums(ctx, acct.ID, &acct.Token)
		})
}

// AlbumInfo fetches one album's details.
func (s *UserService) AlbumInfo(ctx context.Context, user *domain.User, providerCode, albumID string) (*provider.AlbumInfo, error) {
	return callProvider(ctx, s, user, providerCode,
		func(svc provider.Service, acct *domain.OAuthData) (*provider.AlbumInfo, error) {
			return svc.AlbumInfo(ctx, acct.ID, &acct.Token, albumID)
		})
}

// AlbumPhotos lists a page of an album's photos.
func (s *UserService) AlbumPhotos(ctx context.Context, user *domain.User, providerCode, albumID string, page provider.Page) ([]provider.Photo, error) {
	return callProvider(ctx, s, user, providerCode,
		func(svc provider.Service, acct *domain.OAuthData) ([]provider.Photo, error) {
			return svc.AlbumPhotos(ctx, acct.ID, &acct.Token, albumID, page)
		})
}

// PhotoURL resolves the direct URL for one photo at the given size.
func (s *UserService) PhotoURL(ctx context.Context, user *domain.User, providerCode, photoID string, size provider.ImageSize) (string, error) {
	return callProvider(ctx, s, user, providerCode,
		func(svc provider.Service, acct *domain.OAuthData) (string, error) {
			return svc.PhotoURL(ctx, photoID, size, &acct.Token)
		})
}

// callProvider executes an authenticated provider action under the token
// refresh policy: a link already flagged stale short-circuits to the
// refresh path without a doomed round trip; an invalid-token failure marks
// the link stale and is repaired by at most one refresh-and-retry when a
// refresh token is available. The user record is persisted exactly when the
// stale flag or the token changes.
func callProvider[T any](ctx context.Context, s *UserService, user *domain.User, providerCode string, action func(provider.Service, *domain.OAuthData) (T, error)) (T, error) {
	var zero T
	acct, ok := user.Accounts[providerCode]
	if !ok {
		return zero, fmt.Errorf("%w: %s", domain.ErrAccountNotLinked, providerCode)
	}
	svc, err := s.providers.Get(providerCode)
	if err != nil {
		return zero, err
	}

	attempt := func() (T, error) {
		if acct.NeedsRefresh {
			return zero, fmt.Errorf("%w: token for %s is flagged stale", provider.ErrInvalidToken, providerCode)
		}
		result, err := action(svc, &acct)
		if err != nil && errors.Is(err, provider.ErrInvalidToken) {
			acct.NeedsRefresh = true
			user.Accounts[providerCode] = acct
			if uerr := s.users.Update(ctx, user); uerr != nil {
				return zero, uerr
			}
		}
		return result, err
	}

	result, err := attempt()
	if err == nil || !errors.Is(err, provider.ErrInvalidToken) {
		return result, err
	}
	if acct.Token.RefreshToken == "" {
		return zero, err
	}

	accessToken, refreshErr := svc.RefreshAccessToken(ctx, acct.Token.RefreshToken)
	if refreshErr != nil {
		metrics.TokenRefreshes.WithLabelValues(providerCode, "error").Inc()
		return zero, refreshErr
	}
	metrics.TokenRefreshes.WithLabelValues(providerCode, "ok").Inc()
	acct.Token.AccessToken = accessToken
	acct.NeedsRefresh = false
	user.Accounts[providerCode] = acct
	if uerr := s.users.Update(ctx, user); uerr != nil {
		return zero, uerr
	}
	slog.Debug("refreshed provider token", "user_id", user.ID, "provider", providerCode)

	// one retry after a successful refresh, never more
	return attempt()
}
