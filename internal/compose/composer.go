// Package compose renders locale-specific newsletter emails: the opt-in
// confirmation message and the new-content notification. Rendering is a pure
// function of its inputs; the composer holds no mutable state.
package compose

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultLocale is used when a subscriber's language has no copy deck.
const DefaultLocale = "fr"

// Content is the published item being announced to subscribers.
type Content struct {
	ID      string
	Title   string
	URL     string
	Excerpt string
}

// Rendered is a composed email ready to hand to a transport.
type Rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// Composer builds confirmation and notification emails. baseURL is the
// public site root used for confirm and unsubscribe links.
type Composer struct {
	baseURL  string
	siteName string
}

// NewComposer creates a Composer. baseURL must not end with a slash.
func NewComposer(baseURL, siteName string) *Composer {
	return &Composer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		siteName: siteName,
	}
}

// ConfirmURL builds the public confirmation link. The token is the only
// credential; the subscriber is resolved server-side from it.
func (c *Composer) ConfirmURL(locale, token string) string {
	return fmt.Sprintf("%s/%s/newsletter/confirm?token=%s",
		c.baseURL, localeOrDefault(locale), url.QueryEscape(token))
}

// UnsubscribeURL builds the public unsubscribe link embedded in every
// notification footer.
func (c *Composer) UnsubscribeURL(locale, email string) string {
	return fmt.Sprintf("%s/%s/newsletter/unsubscribe?email=%s",
		c.baseURL, localeOrDefault(locale), url.QueryEscape(email))
}

// Confirmation renders the double opt-in email for a freshly issued token.
func (c *Composer) Confirmation(locale, firstName, token string) (Rendered, error) {
	loc := localeOrDefault(locale)
	deck := deckFor(loc)
	link := c.ConfirmURL(loc, token)

	data := confirmationData{
		SiteName:   c.siteName,
		FirstName:  firstName,
		ConfirmURL: link,
	}

	html, err := render(confirmationHTML[loc], data)
	if err != nil {
		return Rendered{}, fmt.Errorf("render confirmation email: %w", err)
	}

	return Rendered{
		Subject:  fmt.Sprintf(deck.confirmSubject, c.siteName),
		TextBody: fmt.Sprintf(deck.confirmText, greet(deck, firstName), link),
		HTMLBody: html,
	}, nil
}

// UnsubscribePlaceholder stands in for the per-recipient unsubscribe link in
// a locale-rendered notification. The dispatch engine renders each locale
// once and substitutes the placeholder per recipient, instead of running the
// template for every address in the batch.
const UnsubscribePlaceholder = "--UNSUBSCRIBE-URL--"

// Notification renders the new-content announcement for one locale, with
// UnsubscribePlaceholder where the recipient's unsubscribe link belongs. An
// unsupported locale falls back to the default copy deck rather than
// failing; composition never fails a batch over locale coverage.
func (c *Composer) Notification(content Content, locale string) (Rendered, error) {
	loc := localeOrDefault(locale)
	deck := deckFor(loc)

	data := notificationData{
		SiteName:       c.siteName,
		Title:          content.Title,
		URL:            content.URL,
		Excerpt:        content.Excerpt,
		UnsubscribeURL: UnsubscribePlaceholder,
		Labels:         deck,
	}

	html, err := render(notificationHTML[loc], data)
	if err != nil {
		return Rendered{}, fmt.Errorf("render notification email: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n%s\n\n%s: %s\n",
		content.Title, content.Excerpt, content.URL,
		deck.unsubscribeLabel, UnsubscribePlaceholder)

	return Rendered{
		Subject:  fmt.Sprintf("%s — %s", c.siteName, content.Title),
		TextBody: text,
		HTMLBody: html,
	}, nil
}

// Personalize fills the recipient's unsubscribe link into a locale-rendered
// notification. The substituted URL carries only query-escaped characters,
// so it is safe in both the text and HTML bodies.
func (c *Composer) Personalize(r Rendered, locale, email string) Rendered {
	link := c.UnsubscribeURL(locale, email)
	r.TextBody = strings.ReplaceAll(r.TextBody, UnsubscribePlaceholder, link)
	r.HTMLBody = strings.ReplaceAll(r.HTMLBody, UnsubscribePlaceholder, link)
	return r
}

// localeOrDefault narrows a locale tag to a supported one.
func localeOrDefault(locale string) string {
	if _, ok := decks[locale]; ok {
		return locale
	}
	return DefaultLocale
}

func deckFor(locale string) copyDeck {
	if d, ok := decks[locale]; ok {
		return d
	}
	return decks[DefaultLocale]
}

func greet(deck copyDeck, firstName string) string {
	if firstName == "" {
		return deck.genericGreeting
	}
	return fmt.Sprintf(deck.namedGreeting, firstName)
}
