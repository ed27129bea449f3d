package loginform

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// LoginCheck decides whether the page fetched after the login POST belongs to an
// authenticated session. It returns an error wrapping ErrLoginFailed when it does not.
type LoginCheck func(doc *goquery.Document) error

// Permissive trusts the login POST, a silent failure shows up as an unauthenticated
// variant of the target page (usually an empty listing).
func Permissive() LoginCheck {
	return func(*goquery.Document) error {
		return nil
	}
}

// NoLoginForm fails when selector matches, ex. the login form rendered again in place of
// the target page.
func NoLoginForm(selector string) LoginCheck {
	return func(doc *goquery.Document) error {
		if doc.Find(selector).Length() > 0 {
			return fmt.Errorf("%w: found %q on the target page", ErrLoginFailed, selector)
		}
		return nil
	}
}

// RequireMarker fails unless selector matches, ex. a logout link or the user avatar.
func RequireMarker(selector string) LoginCheck {
	return func(doc *goquery.Document) error {
		if doc.Find(selector).Length() == 0 {
			return fmt.Errorf("%w: could not find %q on the target page", ErrLoginFailed, selector)
		}
		return nil
	}
}

// AllOf passes only if every check passes, the first failure is returned.
func AllOf(checks ...LoginCheck) LoginCheck {
	return func(doc *goquery.Document) error {
		for _, check := range checks {
			err := check(doc)
			if err != nil {
				return err
			}
		}
		return nil
	}
}
