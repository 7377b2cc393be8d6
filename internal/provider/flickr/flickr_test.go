package flickr_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dghubble/oauth1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/provider"
	"github.com/alexmt/plus2flickr/internal/provider/flickr"
)

func newTestProvider(t *testing.T, handler http.Handler) *flickr.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := flickr.New(flickr.Config{ConsumerKey: "key", ConsumerSecret: "secret"},
		flickr.WithHTTPClient(srv.Client()),
		flickr.WithRESTBaseURL(srv.URL+"/rest"),
	)
	require.NoError(t, err)
	return p
}

// newHandshakeProvider points the OAuth1 handshake legs at a fake server.
func newHandshakeProvider(t *testing.T, handler http.Handler) *flickr.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := flickr.New(flickr.Config{ConsumerKey: "key", ConsumerSecret: "secret"},
		flickr.WithOAuthEndpoint(oauth1.Endpoint{
			RequestTokenURL: srv.URL + "/request_token",
			AuthorizeURL:    srv.URL + "/authorize",
			AccessTokenURL:  srv.URL + "/access_token",
		}),
	)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := flickr.New(flickr.Config{ConsumerSecret: "secret"})
	assert.Error(t, err)
	_, err = flickr.New(flickr.Config{ConsumerKey: "key"})
	assert.Error(t, err)
}

func TestRequestAuthorization(t *testing.T) {
	p := newHandshakeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/request_token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		auth := r.Header.Get("Authorization")
		assert.Contains(t, auth, `oauth_consumer_key="key"`)
		assert.Contains(t, auth, "oauth_callback")
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Write([]byte("oauth_token=rt&oauth_token_secret=rs&oauth_callback_confirmed=true"))
	}))

	req, err := p.RequestAuthorization(context.Background(), "https://app.example/verify")
	require.NoError(t, err)
	assert.Equal(t, "rs", req.Secret)
	assert.Contains(t, req.URL, "/authorize")
	assert.Contains(t, req.URL, "oauth_token=rt")
	assert.Contains(t, req.URL, "perms=read")
}

func TestRequestAuthorization_UnconfirmedCallback(t *testing.T) {
	p := newHandshakeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Write([]byte("oauth_token=rt&oauth_token_secret=rs&oauth_callback_confirmed=false"))
	}))

	_, err := p.RequestAuthorization(context.Background(), "https://app.example/verify")
	require.Error(t, err)
}

func TestAuthorizeToken(t *testing.T) {
	p := newHandshakeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/access_token", r.URL.Path)
		auth := r.Header.Get("Authorization")
		assert.Contains(t, auth, `oauth_token="rt"`)
		assert.Contains(t, auth, `oauth_verifier="v"`)
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Write([]byte("oauth_token=at&oauth_token_secret=as"))
	}))

	token, err := p.AuthorizeToken(context.Background(), "rt", "rs", "v")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "as", token.Secret)
	assert.Empty(t, token.RefreshToken)
}

func TestAccountInfo(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "flickr.test.login", q.Get("method"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Contains(t, r.Header.Get("Authorization"), "oauth_token")
		w.Write([]byte(`{"stat":"ok","user":{"id":"77@N00","username":{"_content":"jo"}}}`))
	}))

	info, err := p.AccountInfo(context.Background(), &domain.OAuthToken{AccessToken: "at", Secret: "as"})
	require.NoError(t, err)
	assert.Equal(t, "77@N00", info.ID)
	require.NotNil(t, info.FirstName)
	assert.Equal(t, "jo", *info.FirstName)
	assert.Nil(t, info.Email)
}

func TestAlbums(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "flickr.photosets.getList", q.Get("method"))
		assert.Equal(t, "77@N00", q.Get("user_id"))
		w.Write([]byte(`{"stat":"ok","photosets":{"photoset":[
			{"id":"s1","photos":5,"title":{"_content":"Holidays"},
			 "farm":9,"server":"8765","primary":"111","secret":"abc"}
		]}}`))
	}))

	albums, err := p.Albums(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "at", Secret: "as"})
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "s1", albums[0].ID)
	assert.Equal(t, "Holidays", albums[0].Name)
	assert.Equal(t, 5, albums[0].PhotoCount)
	assert.Equal(t, "https://farm9.staticflickr.com/8765/111_abc_t.jpg", albums[0].CoverURL)
}

func TestPhotoURL(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "flickr.photos.getInfo", q.Get("method"))
		assert.Equal(t, "p1", q.Get("photo_id"))
		w.Write([]byte(`{"stat":"ok","photo":{"id":"p1","farm":9,"server":"8765","secret":"abc"}}`))
	}))

	url, err := p.PhotoURL(context.Background(), "p1", provider.ImageSizeLarge, &domain.OAuthToken{AccessToken: "at", Secret: "as"})
	require.NoError(t, err)
	assert.Equal(t, "https://farm9.staticflickr.com/8765/p1_abc_b.jpg", url)
}

func TestCall_FailureCodes(t *testing.T) {
	t.Run("invalid auth token maps to the invalid-token signal", func(t *testing.T) {
		p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"stat":"fail","code":98,"message":"Invalid auth token"}`))
		}))

		_, err := p.Albums(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "stale", Secret: "as"})
		require.ErrorIs(t, err, provider.ErrInvalidToken)
	})

	t.Run("other failure codes are plain errors", func(t *testing.T) {
		p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"stat":"fail","code":1,"message":"Photoset not found"}`))
		}))

		_, err := p.AlbumInfo(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "at", Secret: "as"}, "missing")
		require.Error(t, err)
		assert.NotErrorIs(t, err, provider.ErrInvalidToken)
		assert.Contains(t, err.Error(), "Photoset not found")
	})

	t.Run("http 401 maps to the invalid-token signal", func(t *testing.T) {
		p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := p.Albums(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "stale", Secret: "as"})
		require.ErrorIs(t, err, provider.ErrInvalidToken)
	})
}

func TestAlbumPhotos_Paging(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "25", q.Get("per_page"))
		assert.Equal(t, "3", q.Get("page"))
		w.Write([]byte(`{"stat":"ok","photoset":{"photo":[
			{"id":"p1","title":"Beach","farm":9,"server":"8765","secret":"abc"}
		]}}`))
	}))

	photos, err := p.AlbumPhotos(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "at", Secret: "as"},
		"s1", provider.Page{Offset: 50, Count: 25})
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://farm9.staticflickr.com/8765/p1_abc_t.jpg", photos[0].ThumbnailURL)
}

func TestAlbumPhotos_UnalignedOffsetRoundsDown(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("per_page"))
		// offset 10 is aligned down to the page starting at item 9
		assert.Equal(t, "4", q.Get("page"))
		w.Write([]byte(`{"stat":"ok","photoset":{"photo":[]}}`))
	}))

	_, err := p.AlbumPhotos(context.Background(), "77@N00", &domain.OAuthToken{AccessToken: "at", Secret: "as"},
		"s1", provider.Page{Offset: 10, Count: 3})
	require.NoError(t, err)
}

func TestUnsupportedGrants(t *testing.T) {
	p, err := flickr.New(flickr.Config{ConsumerKey: "key", ConsumerSecret: "secret"})
	require.NoError(t, err)

	_, err = p.AuthorizeCode(context.Background(), "code")
	assert.ErrorIs(t, err, provider.ErrUnsupportedGrant)
	_, err = p.RefreshAccessToken(context.Background(), "rt")
	assert.ErrorIs(t, err, provider.ErrUnsupportedGrant)
}
