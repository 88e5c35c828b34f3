package yupoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "yupoocrawl/pkg/errors"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestIsLocked(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		locked bool
	}{
		{"indexlock class", `<div class="indexlock__content">locked</div>`, true},
		{"encrypted phrase mixed case", `<p>This album is Encrypted</p>`, true},
		{"chinese prompt", `<p>请输入密码</p>`, true},
		{"english prompt", `<p>Please Enter Password to continue</p>`, true},
		{"unlocked page", `<div class="showindex__children">products</div>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.locked, IsLocked(docFrom(t, tt.html)))
		})
	}
}

const lockedPage = `<html><body><div class="indexlock">请输入密码</div></body></html>`
const openPage = `<html><body><div class="showindex">products here</div></body></html>`

// authServer simulates a protected shop: listing pages are locked until the
// auth endpoint sees the right password.
type authServer struct {
	unlocked     atomic.Bool
	password     string
	authCalls    atomic.Int32
	listingCalls atomic.Int32
}

func (s *authServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/web/users/") {
			s.authCalls.Add(1)
			valid := r.URL.Query().Get("password") == s.password
			if valid {
				s.unlocked.Store(true)
			}
			fmt.Fprintf(w, `{"data":{"passwordValid":%t}}`, valid)
			return
		}
		s.listingCalls.Add(1)
		if s.unlocked.Load() {
			w.Write([]byte(openPage))
		} else {
			w.Write([]byte(lockedPage))
		}
	})
}

func newAuthClient() *Client {
	return NewClient(0, 0, nil)
}

func TestEnsureAuthenticatedNoPassword(t *testing.T) {
	c := newAuthClient()
	// No password means no probe and no requests at all
	err := c.EnsureAuthenticated(context.Background(), "http://127.0.0.1:1/categories/9", "")
	assert.NoError(t, err)
}

func TestEnsureAuthenticatedAlreadyOpen(t *testing.T) {
	srv := &authServer{password: "secret"}
	srv.unlocked.Store(true)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := newAuthClient()
	err := c.EnsureAuthenticated(context.Background(), ts.URL+"/categories/9", "secret")

	assert.NoError(t, err)
	assert.EqualValues(t, 0, srv.authCalls.Load())
}

func TestEnsureAuthenticatedSuccess(t *testing.T) {
	srv := &authServer{password: "secret"}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := newAuthClient()
	err := c.EnsureAuthenticated(context.Background(), ts.URL+"/categories/9", "secret")

	assert.NoError(t, err)
	assert.EqualValues(t, 1, srv.authCalls.Load())
	// Probe + re-probe
	assert.EqualValues(t, 2, srv.listingCalls.Load())
}

func TestEnsureAuthenticatedRejectedPassword(t *testing.T) {
	srv := &authServer{password: "secret"}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := newAuthClient()
	err := c.EnsureAuthenticated(context.Background(), ts.URL+"/categories/9", "wrong")

	require.Error(t, err)
	var crawlErr *errs.Error
	require.True(t, errors.As(err, &crawlErr))
	assert.Equal(t, errs.ErrorTypeAuth, crawlErr.Type)
}

func TestEnsureAuthenticatedStillLocked(t *testing.T) {
	// The endpoint accepts the password but the pages never unlock
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/web/users/") {
			w.Write([]byte(`{"data":{"passwordValid":true}}`))
			return
		}
		w.Write([]byte(lockedPage))
	}))
	defer ts.Close()

	c := newAuthClient()
	err := c.EnsureAuthenticated(context.Background(), ts.URL+"/categories/9", "secret")

	require.Error(t, err)
	var crawlErr *errs.Error
	require.True(t, errors.As(err, &crawlErr))
	assert.Equal(t, errs.ErrorTypeLocked, crawlErr.Type)
}

func TestEnsureAuthenticatedNonJSONReply(t *testing.T) {
	// Some shops answer the auth call with an HTML page; the unlock cookie
	// is set speculatively and the re-probe decides.
	var unlocked atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/web/users/") {
			unlocked.Store(true)
			w.Write([]byte("<html>ok</html>"))
			return
		}
		if unlocked.Load() {
			w.Write([]byte(openPage))
		} else {
			w.Write([]byte(lockedPage))
		}
	}))
	defer ts.Close()

	c := newAuthClient()
	err := c.EnsureAuthenticated(context.Background(), ts.URL+"/categories/9", "secret")
	assert.NoError(t, err)
}
