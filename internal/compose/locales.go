package compose

import (
	"fmt"
	"html/template"
	"strings"
)

// copyDeck holds the per-locale wording. French is the diocese's primary
// language and the fallback for unsupported locales.
type copyDeck struct {
	confirmSubject   string // fmt verb: site name
	confirmText      string // fmt verbs: greeting, confirm URL
	namedGreeting    string // fmt verb: first name
	genericGreeting  string
	unsubscribeLabel string
	ReadMoreLabel    string
}

var decks = map[string]copyDeck{
	"fr": {
		confirmSubject:   "Confirmez votre inscription à la lettre d'information de %s",
		confirmText:      "%s,\n\nPour confirmer votre inscription à notre lettre d'information, cliquez sur le lien suivant :\n\n%s\n\nCe lien est valable 48 heures. Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.\n",
		namedGreeting:    "Bonjour %s",
		genericGreeting:  "Bonjour",
		unsubscribeLabel: "Se désinscrire",
		ReadMoreLabel:    "Lire la suite",
	},
	"en": {
		confirmSubject:   "Confirm your subscription to the %s newsletter",
		confirmText:      "%s,\n\nTo confirm your subscription to our newsletter, follow this link:\n\n%s\n\nThe link is valid for 48 hours. If you did not request this, you can ignore this message.\n",
		namedGreeting:    "Hello %s",
		genericGreeting:  "Hello",
		unsubscribeLabel: "Unsubscribe",
		ReadMoreLabel:    "Read more",
	},
}

type confirmationData struct {
	SiteName   string
	FirstName  string
	ConfirmURL string
}

type notificationData struct {
	SiteName       string
	Title          string
	URL            string
	Excerpt        string
	UnsubscribeURL string
	Labels         copyDeck
}

var confirmationHTML = map[string]*template.Template{
	"fr": mustParse("confirmation_fr", `<!DOCTYPE html>
<html lang="fr"><body style="font-family: Georgia, serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<p>{{if .FirstName}}Bonjour {{.FirstName}},{{else}}Bonjour,{{end}}</p>
<p>Pour confirmer votre inscription à la lettre d'information de {{.SiteName}}, cliquez sur le bouton ci-dessous&nbsp;:</p>
<p style="text-align: center; margin: 30px 0;">
<a href="{{.ConfirmURL}}" style="background: #7a1f2b; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Confirmer mon inscription</a>
</p>
<p style="font-size: 0.9em; color: #777;">Ce lien est valable 48 heures. Si vous n'êtes pas à l'origine de cette demande, ignorez simplement ce message.</p>
</body></html>`),
	"en": mustParse("confirmation_en", `<!DOCTYPE html>
<html lang="en"><body style="font-family: Georgia, serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<p>{{if .FirstName}}Hello {{.FirstName}},{{else}}Hello,{{end}}</p>
<p>To confirm your subscription to the {{.SiteName}} newsletter, use the button below:</p>
<p style="text-align: center; margin: 30px 0;">
<a href="{{.ConfirmURL}}" style="background: #7a1f2b; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Confirm my subscription</a>
</p>
<p style="font-size: 0.9em; color: #777;">The link is valid for 48 hours. If you did not request this, you can ignore this message.</p>
</body></html>`),
}

var notificationHTML = map[string]*template.Template{
	"fr": mustParse("notification_fr", `<!DOCTYPE html>
<html lang="fr"><body style="font-family: Georgia, serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #7a1f2b;">{{.Title}}</h2>
{{if .Excerpt}}<p>{{.Excerpt}}</p>{{end}}
<p><a href="{{.URL}}" style="color: #7a1f2b;">{{.Labels.ReadMoreLabel}} →</a></p>
<hr style="border: none; border-top: 1px solid #ddd; margin-top: 30px;">
<p style="font-size: 0.85em; color: #777;">{{.SiteName}} — <a href="{{.UnsubscribeURL}}" style="color: #777;">Se désinscrire</a></p>
</body></html>`),
	"en": mustParse("notification_en", `<!DOCTYPE html>
<html lang="en"><body style="font-family: Georgia, serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #7a1f2b;">{{.Title}}</h2>
{{if .Excerpt}}<p>{{.Excerpt}}</p>{{end}}
<p><a href="{{.URL}}" style="color: #7a1f2b;">{{.Labels.ReadMoreLabel}} →</a></p>
<hr style="border: none; border-top: 1px solid #ddd; margin-top: 30px;">
<p style="font-size: 0.85em; color: #777;">{{.SiteName}} — <a href="{{.UnsubscribeURL}}" style="color: #777;">Unsubscribe</a></p>
</body></html>`),
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
