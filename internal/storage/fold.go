package storage

import (
	"database/sql/driver"

	"golang.org/x/text/cases"
	"modernc.org/sqlite"
)

// foldFunction is the SQL name of fold, available on every connection.
const foldFunction = "finanzas_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunction, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		s, ok := args[0].(string)
		if !ok {
			return args[0], nil
		}
		return fold(s), nil
	})
}

// fold case-folds s with full Unicode rules, so "CAFÉ" and "café" compare
// equal. SQLite's own LIKE folds ASCII only.
func fold(s string) string {
	return cases.Fold().String(s)
}
