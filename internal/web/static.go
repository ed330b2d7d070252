package web

import (
	"embed"
)

// staticFiles holds the embedded setup page.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
