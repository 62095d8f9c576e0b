// Package sqlite provides the modernc.org/sqlite backed infrastructure driver.
//
// The package mirrors the postgres driver layout: it turns a Config into a
// pooled *sql.DB with the pragmas the procurement schema relies on, most
// importantly foreign key enforcement, and classifies driver errors.
package sqlite
