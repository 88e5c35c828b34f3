package yupoo

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "yupoocrawl/pkg/errors"
)

// lockCookieName is the cookie the site's own frontend sets after a
// successful password check.
const lockCookieName = "indexlockcode"

// lockPhrases are the password-wall markers shown to visitors, checked
// across the site's display languages.
var lockPhrases = []string{
	"encrypted",
	"请输入密码",
	"enter password",
}

// authReply is the JSON body of the password-check endpoint
type authReply struct {
	Data struct {
		PasswordValid bool `json:"passwordValid"`
	} `json:"data"`
}

// IsLocked reports whether a fetched page is behind the password wall. It
// looks for the indexlock class token anywhere in the markup and for the
// known lock phrases in the visible text.
func IsLocked(doc *goquery.Document) bool {
	if html, err := doc.Html(); err == nil {
		if strings.Contains(strings.ToLower(html), "indexlock") {
			return true
		}
	}

	text := strings.ToLower(doc.Text())
	for _, phrase := range lockPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	return false
}

// EnsureAuthenticated establishes access to a password-protected category.
// With no password configured it succeeds immediately; otherwise it probes
// page 1, and only if the probe shows a lock does it submit the password to
// the shop's auth endpoint and set the unlock cookie for the wildcard
// parent domain. A final re-probe confirms the lock is gone.
//
// Failure is category-fatal for the owning worker but never escalates
// past it.
func (c *Client) EnsureAuthenticated(ctx context.Context, categoryURL, password string) error {
	if password == "" {
		return nil
	}

	doc, err := c.FetchListingPage(ctx, categoryURL, 1)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "auth probe failed for %s", categoryURL)
	}
	if !IsLocked(doc) {
		return nil
	}

	owner, err := Owner(categoryURL)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "cannot derive owner from %s", categoryURL)
	}
	authURL, err := AuthURL(categoryURL, owner, password)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "cannot build auth endpoint for %s", categoryURL)
	}

	c.logger.InfoWithFields("category is password protected, authenticating", map[string]interface{}{
		"owner": owner,
	})

	var reply authReply
	if err := c.GetJSON(ctx, authURL, &reply); err != nil {
		var crawlErr *errs.Error
		if errors.As(err, &crawlErr) && crawlErr.Type == errs.ErrorTypeParsing {
			// Non-JSON success page: set the cookie speculatively and let
			// the re-probe decide.
			c.logger.Debug("auth reply was not JSON, setting unlock cookie speculatively")
		} else {
			return errs.Wrap(errs.ErrorTypeAuth, err, "auth request failed for %s", owner)
		}
	} else if !reply.Data.PasswordValid {
		return errs.New(errs.ErrorTypeAuth, 0, "password rejected for %s", owner)
	}

	c.SetSessionCookie(lockCookieName, password, ParentDomain(categoryURL))

	doc, err = c.FetchListingPage(ctx, categoryURL, 1)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "auth re-probe failed for %s", categoryURL)
	}
	if IsLocked(doc) {
		return errs.New(errs.ErrorTypeLocked, 0, "category still locked after authentication: %s", categoryURL)
	}

	c.logger.Info("authentication successful")
	return nil
}
