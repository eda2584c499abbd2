// Package migrations embebe los scripts SQL para que el binario pueda migrar
// sin depender del árbol de fuentes en disco.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
