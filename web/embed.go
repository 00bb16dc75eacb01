// Package web embeds the browser UI: the three pages and their static assets.
package web

import "embed"

// FS holds register.html, login.html, dashboard.html and static/.
//
//go:embed *.html static/*
var FS embed.FS
