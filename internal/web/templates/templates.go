// Package templates embeds the HTML for the web UI.
package templates

import "embed"

//go:embed *.html pages/*.html partials/*.html
var FS embed.FS
