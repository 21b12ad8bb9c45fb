// Package sqlxrepos implements the core repositories on PostgreSQL with
// sqlx scanning and squirrel query building.
package sqlxrepos

import sq "github.com/Masterminds/squirrel"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
