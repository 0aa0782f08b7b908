package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error chain. Subject names the
// storefront record a database constraint protects, so a conflict on
// wallets_user_id_key reads as "wallet" in the logs.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	Subject   string `json:"subject,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

var constraintSubjects = map[string]string{
	"users_email_key":                         "user email",
	"idx_users_email_lower":                   "user email",
	"wallets_user_id_key":                     "wallet",
	"wallet_transactions_wallet_sequence_key": "wallet transaction",
	"wallet_transactions_order_fk":            "wallet transaction order",
	"categories_slug_key":                     "category slug",
	"categories_not_self_parent":              "category parent",
	"idx_categories_parent_name":              "category name",
	"products_slug_key":                       "product slug",
	"cart_items_variant_key":                  "cart item",
}

var tableSubjects = map[string]string{
	"users":               "user",
	"wallets":             "wallet",
	"wallet_transactions": "wallet transaction",
	"categories":          "category",
	"products":            "product",
	"cart_items":          "cart item",
	"orders":              "order",
	"order_items":         "order item",
}

// Serialization failures and deadlocks are safe to replay.
var retryablePGCodes = map[string]bool{
	"40001": true,
	"40P01": true,
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	default:
		for e := err; e != nil && d.Subject == ""; e = errors.Unwrap(e) {
			d.Subject = tableSubjects[sqliteConstraintTable(e.Error())]
		}
		return d
	}

	d.Retryable = retryablePGCodes[d.PGCode]
	d.Subject = subjectFor(d.PGConstraint, d.PGTable)
	return d
}

func subjectFor(constraint, table string) string {
	if s, ok := constraintSubjects[constraint]; ok {
		return s
	}
	return tableSubjects[table]
}

// sqliteConstraintTable pulls the table out of messages such as
// "UNIQUE constraint failed: products.slug".
func sqliteConstraintTable(msg string) string {
	_, rest, ok := strings.Cut(msg, "constraint failed: ")
	if !ok {
		return ""
	}
	table, _, ok := strings.Cut(rest, ".")
	if !ok {
		return ""
	}
	return strings.TrimSpace(table)
}
