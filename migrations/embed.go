// Package migrations bundles the SQL schema so the server binary can migrate
// without a checkout of the repository.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
