// Package appfs exposes embedded application files (goose migrations).
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
