package google_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/provider"
	"github.com/alexmt/plus2flickr/internal/provider/google"
)

func newTestProvider(t *testing.T, handler http.Handler) *google.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := google.New(google.Config{ClientID: "id", ClientSecret: "secret"},
		google.WithHTTPClient(srv.Client()),
		google.WithEndpoints(srv.URL+"/userinfo", srv.URL+"/feed"),
		google.WithTokenURL(srv.URL+"/token"),
	)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := google.New(google.Config{ClientSecret: "secret"})
	assert.Error(t, err)
	_, err = google.New(google.Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestAuthorizeCode(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))

	token, err := p.AuthorizeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "rt", r.Form.Get("refresh_token"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
		}))

		token, err := p.RefreshAccessToken(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, "fresh", token)
	})

	t.Run("rejected refresh token is the invalid-token signal", func(t *testing.T) {
		p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		}))

		_, err := p.RefreshAccessToken(context.Background(), "revoked")
		require.ErrorIs(t, err, provider.ErrInvalidToken)
	})
}

func TestAccountInfo(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/userinfo", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"g42","email":"jo@example.com","given_name":"Jo","family_name":"Doe"}`))
	}))

	info, err := p.AccountInfo(context.Background(), &domain.OAuthToken{AccessToken: "at"})
	require.NoError(t, err)
	assert.Equal(t, "g42", info.ID)
	require.NotNil(t, info.Email)
	assert.Equal(t, "jo@example.com", *info.Email)
	require.NotNil(t, info.FirstName)
	assert.Equal(t, "Jo", *info.FirstName)
}

func TestAccountInfo_UnauthorizedIsInvalidToken(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := p.AccountInfo(context.Background(), &domain.OAuthToken{AccessToken: "stale"})
	require.ErrorIs(t, err, provider.ErrInvalidToken)
}

const albumsFeed = `{
  "feed": {
    "entry": [
      {
        "gphoto$id": {"$t": "a1"},
        "title": {"$t": "Holidays"},
        "gphoto$numphotos": {"$t": 12},
        "media$group": {"media$thumbnail": [{"url": "https://img.example/a1.jpg"}]}
      },
      {
        "gphoto$id": {"$t": "a2"},
        "title": {"$t": "Pets"},
        "gphoto$numphotos": {"$t": 3},
        "media$group": {}
      }
    ]
  }
}`

func TestAlbums(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feed/user/g42", r.URL.Path)
		assert.Equal(t, "album", r.URL.Query().Get("kind"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(albumsFeed))
	}))

	albums, err := p.Albums(context.Background(), "g42", &domain.OAuthToken{AccessToken: "at"})
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, provider.Album{ID: "a1", Name: "Holidays", PhotoCount: 12, CoverURL: "https://img.example/a1.jpg"}, albums[0])
	assert.Equal(t, "a2", albums[1].ID)
	assert.Empty(t, albums[1].CoverURL)
}

func TestAlbumPhotos_PagingIsOneIndexed(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "21", r.URL.Query().Get("start-index"))
		assert.Equal(t, "10", r.URL.Query().Get("max-results"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"feed":{"entry":[{"gphoto$id":{"$t":"p1"},"title":{"$t":"Beach"}}]}}`))
	}))

	photos, err := p.AlbumPhotos(context.Background(), "g42", &domain.OAuthToken{AccessToken: "at"},
		"a1", provider.Page{Offset: 20, Count: 10})
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "p1", photos[0].ID)
	assert.Equal(t, "Beach", photos[0].Title)
}

func TestPhotoURL(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feed/user/default/photoid/p1", r.URL.Path)
		assert.Equal(t, "1600", r.URL.Query().Get("imgmax"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entry":{"content":{"src":"https://img.example/p1_big.jpg"}}}`))
	}))

	url, err := p.PhotoURL(context.Background(), "p1", provider.ImageSizeLarge, &domain.OAuthToken{AccessToken: "at"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/p1_big.jpg", url)
}

func TestOAuth1EntryPointsAreUnsupported(t *testing.T) {
	p, err := google.New(google.Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	_, err = p.RequestAuthorization(context.Background(), "https://app.example/verify")
	assert.ErrorIs(t, err, provider.ErrUnsupportedGrant)
	_, err = p.AuthorizeToken(context.Background(), "t", "s", "v")
	assert.ErrorIs(t, err, provider.ErrUnsupportedGrant)
}
