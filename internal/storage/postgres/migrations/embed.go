// migrations содержит SQL-миграции схемы postgres-хранилища (формат goose).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
