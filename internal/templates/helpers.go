package templates

import (
	"text/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "January 2, 2006"

// Site is the storefront configuration exposed to every template as .site.
type Site struct {
	Name           string
	URL            string
	SupportEmail   string
	CurrencySymbol string
}

// Funcs returns the helper functions available to body templates.
func Funcs(site Site) template.FuncMap {
	printer := message.NewPrinter(language.English)

	return template.FuncMap{
		"formatCurrency": func(amount float64) string {
			return site.CurrencySymbol + printer.Sprintf("%.2f", amount)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(dateLayout)
		},
	}
}
