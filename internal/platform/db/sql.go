package db

import (
	sq "github.com/Masterminds/squirrel"
)

// SQL builds statements with PostgreSQL $n placeholders.
var SQL = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
