package css

import (
	"sync"
)

// userAgentCSS carries the defaults every document starts from. Block
// elements get no default margins, so unstyled blocks stack flush.
const userAgentCSS = `
html, body, div, p, h1, h2, h3, h4, h5, h6, ul, ol, dl, dt, dd, menu, dir,
header, footer, main, section, article, nav, aside, address, blockquote,
figure, figcaption, fieldset, legend, form, pre, hr, details, summary,
center, hgroup, dialog, listing, xmp, plaintext { display: block }
li { display: list-item }
table { display: table }
tr { display: table-row }
td, th { display: table-cell }
thead, tbody, tfoot, caption { display: block }
head, style, script, title, meta, link, base, template, noscript, datalist,
param, source, track, area, map { display: none }
[hidden] { display: none }

h1 { font-size: 2em; font-weight: bold }
h2 { font-size: 1.5em; font-weight: bold }
h3 { font-size: 1.17em; font-weight: bold }
h4 { font-weight: bold }
h5 { font-size: 0.83em; font-weight: bold }
h6 { font-size: 0.67em; font-weight: bold }
b, strong, th { font-weight: bold }
i, em, cite, var, dfn, address { font-style: italic }
small { font-size: smaller }
big { font-size: larger }
pre, code, kbd, samp, tt, listing, xmp, plaintext { font-family: monospace }
pre, listing, xmp, plaintext { white-space: pre }
textarea { white-space: pre-wrap }
nobr { white-space: nowrap }
center, th { text-align: center }
a:link { color: #0645ad }
img, input, button, select, textarea, video, canvas, iframe, embed, object { display: inline-block }
hr { border: 1px inset gray }
`

var (
	uaOnce  sync.Once
	uaSheet *Stylesheet
)

// UserAgentStylesheet returns the built-in defaults, parsed once.
func UserAgentStylesheet() *Stylesheet {
	uaOnce.Do(func() {
		uaSheet, _ = ParseStylesheet(userAgentCSS)
		uaSheet.Origin = OriginUserAgent
	})
	return uaSheet
}
