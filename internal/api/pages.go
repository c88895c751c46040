package api

import (
	"html/template"
	"net/http"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/logger"
)

// pageKind identifies one of the small HTML result pages served after a
// confirm or unsubscribe click.
type pageKind string

const (
	pageConfirmed    pageKind = "confirmed"
	pageExpired      pageKind = "expired"
	pageInvalid      pageKind = "invalid"
	pageUnsubscribed pageKind = "unsubscribed"
	pageError        pageKind = "error"
)

type pageCopy struct {
	Title string
	Body  string
}

// Result page copy per locale. The confirm and unsubscribe links embed the
// locale, so the page can answer in the subscriber's language without a
// lookup.
var pageCopies = map[string]map[pageKind]pageCopy{
	"fr": {
		pageConfirmed: {
			Title: "Inscription confirmée",
			Body:  "Merci ! Votre inscription à la newsletter est confirmée. Vous recevrez désormais nos actualités.",
		},
		pageExpired: {
			Title: "Lien expiré",
			Body:  "Ce lien de confirmation a expiré. Vous pouvez vous réinscrire pour recevoir un nouveau lien.",
		},
		pageInvalid: {
			Title: "Lien invalide",
			Body:  "Ce lien de confirmation n'est pas valide ou a déjà été remplacé.",
		},
		pageUnsubscribed: {
			Title: "Désinscription effectuée",
			Body:  "Vous êtes désinscrit de la newsletter. Vous ne recevrez plus nos messages.",
		},
		pageError: {
			Title: "Erreur",
			Body:  "Une erreur est survenue. Merci de réessayer plus tard.",
		},
	},
	"en": {
		pageConfirmed: {
			Title: "Subscription confirmed",
			Body:  "Thank you! Your newsletter subscription is confirmed. You will now receive our news.",
		},
		pageExpired: {
			Title: "Link expired",
			Body:  "This confirmation link has expired. You can subscribe again to receive a new one.",
		},
		pageInvalid: {
			Title: "Invalid link",
			Body:  "This confirmation link is not valid or has already been replaced.",
		},
		pageUnsubscribed: {
			Title: "Unsubscribed",
			Body:  "You have been unsubscribed from the newsletter. You will no longer receive our messages.",
		},
		pageError: {
			Title: "Error",
			Body:  "Something went wrong. Please try again later.",
		},
	},
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - {{.SiteName}}</title>
<style>
body { font-family: Georgia, serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; color: #333; }
h1 { font-size: 1.5rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
<p><a href="/">{{.SiteName}}</a></p>
</body>
</html>
`))

type pageData struct {
	Lang     string
	Title    string
	Body     string
	SiteName string
}

// renderPage writes an HTML result page for the given kind and locale.
func renderPage(r *http.Request, w http.ResponseWriter, status int, locale string, kind pageKind, siteName string) {
	copies, ok := pageCopies[locale]
	if !ok {
		locale = compose.DefaultLocale
		copies = pageCopies[locale]
	}
	c := copies[kind]

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := pageTmpl.Execute(w, pageData{
		Lang:     locale,
		Title:    c.Title,
		Body:     c.Body,
		SiteName: siteName,
	})
	if err != nil {
		// Status is already written; all that is left is recording it.
		log := logger.FromContext(r.Context())
		log.Error().Err(err).
			Str("page", string(kind)).
			Msg("result page render failed")
	}
}
