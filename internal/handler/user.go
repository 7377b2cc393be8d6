package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/provider"
	"github.com/alexmt/plus2flickr/internal/service"
)

// UserHandler exposes the account linking and photo endpoints.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserInfoView is the compact user summary: display name plus a
// per-provider flag that is true only for links that are healthy (linked
// and not flagged stale).
type UserInfoView struct {
	Name     string          `json:"name"`
	Accounts map[string]bool `json:"accounts"`
}

// DetailedUserInfoView carries the editable profile fields and the list of
// healthy linked providers.
type DetailedUserInfoView struct {
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	LinkedProviders []string `json:"linked_providers"`
}

// UpdateUserInfoRequest is the explicit profile update payload.
type UpdateUserInfoRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// OAuth2VerifyRequest carries an OAuth2 authorization code for linking.
type OAuth2VerifyRequest struct {
	Provider string `json:"provider" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// currentUser loads the authenticated user for this request.
func (h *UserHandler) currentUser(c echo.Context) (*domain.User, error) {
	id, ok := UserID(c)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	user, err := h.users.FindUser(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// valid token for a deleted user
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

func (h *UserHandler) userInfoView(user *domain.User) UserInfoView {
	accounts := map[string]bool{}
	for _, code := range h.users.Providers().Codes() {
		acct, ok := user.Accounts[code]
		accounts[code] = ok && !acct.NeedsRefresh
	}
	return UserInfoView{Name: user.DisplayName(), Accounts: accounts}
}

// Info returns the compact user summary.
func (h *UserHandler) Info(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, h.userInfoView(user))
}

// DetailedInfo returns the editable profile plus linked providers.
func (h *UserHandler) DetailedInfo(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	linked := make([]string, 0, len(user.Accounts))
	for _, code := range h.users.Providers().Codes() {
		if acct, ok := user.Accounts[code]; ok && !acct.NeedsRefresh {
			linked = append(linked, code)
		}
	}
	return JSON(c, http.StatusOK, DetailedUserInfoView{
		FirstName:       strValue(user.Info.FirstName),
		LastName:        strValue(user.Info.LastName),
		Email:           strValue(user.Info.Email),
		LinkedProviders: linked,
	})
}

// UpdateInfo overwrites the user's profile with the supplied values.
func (h *UserHandler) UpdateInfo(c echo.Context) error {
	var req UpdateUserInfoRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	info := domain.UserInfo{
		FirstName: optional(req.FirstName),
		LastName:  optional(req.LastName),
		Email:     optional(req.Email),
	}
	if err := h.users.UpdateUserInfo(c.Request().Context(), user, info); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveProvider unlinks one provider account.
func (h *UserHandler) RemoveProvider(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.RemoveProvider(c.Request().Context(), user, c.Param("provider")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAccount removes the user entirely.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.DeleteUser(c.Request().Context(), user); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyOAuth2 links a provider account from an OAuth2 authorization code
// and returns the refreshed user summary.
func (h *UserHandler) VerifyOAuth2(c echo.Context) error {
	var req OAuth2VerifyRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.AuthorizeOAuth2(c.Request().Context(), user, req.Code, req.Provider); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, h.userInfoView(user))
}

// AuthorizeOAuth1 starts an OAuth1 handshake and redirects the user to the
// provider's authorization page. The callback URL is this route with
// /authorize replaced by /verify.
func (h *UserHandler) AuthorizeOAuth1(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	callback := fmt.Sprintf("%s://%s%s", c.Scheme(), c.Request().Host,
		strings.Replace(c.Request().URL.Path, "/authorize", "/verify", 1))
	url, err := h.users.AuthorizationURL(c.Request().Context(), user, callback, c.Param("provider"))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, url)
}

// VerifyOAuth1 handles the provider's OAuth1 callback and completes the
// link.
func (h *UserHandler) VerifyOAuth1(c echo.Context) error {
	token := c.QueryParam("oauth_token")
	verifier := c.QueryParam("oauth_verifier")
	if token == "" || verifier == "" {
		return fmt.Errorf("%w: missing oauth_token or oauth_verifier", domain.ErrInvalidInput)
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.AuthorizeOAuth1(c.Request().Context(), user, token, verifier, c.Param("provider")); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/")
}

// Albums lists the user's albums on one provider.
func (h *UserHandler) Albums(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	albums, err := h.users.Albums(c.Request().Context(), user, c.Param("provider"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, albums)
}

// AlbumInfo returns one album's details.
func (h *UserHandler) AlbumInfo(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	info, err := h.users.AlbumInfo(c.Request().Context(), user, c.Param("provider"), c.Param("albumID"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, info)
}

// AlbumPhotos lists a page of an album's photos.
func (h *UserHandler) AlbumPhotos(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	page := provider.Page{Offset: queryInt(c, "offset", 0), Count: queryInt(c, "count", 100)}
	photos, err := h.users.AlbumPhotos(c.Request().Context(), user,
		c.Param("provider"), c.Param("albumID"), page)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, photos)
}

// PhotoRedirect resolves a photo's direct URL and redirects to it.
func (h *UserHandler) PhotoRedirect(c echo.Context) error {
	size, err := provider.ParseImageSize(c.Param("size"))
	if err != nil {
		return err
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	url, err := h.users.PhotoURL(c.Request().Context(), user,
		c.Param("provider"), c.Param("photoID"), size)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, url)
}

func queryInt(c echo.Context, name string, fallback int) int {
	v := c.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
