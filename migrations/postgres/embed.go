// Package migrations embeds SQL migration files.
package migrations

import "embed"

// IdentityFS contiene el schema mínimo de la tabla users que lee el
// identity store de postgres (instalaciones sin servicio de usuarios propio).
//
//go:embed identity/*.sql
var IdentityFS embed.FS

// IdentityDir is the directory within IdentityFS where migrations live.
const IdentityDir = "identity"
