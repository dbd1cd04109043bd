package mysql

import (
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/tablegate/internal/errs"
)

// NormalizeDSN parses dsn and forces the options tablegate relies on:
// time values are parsed and a statement may never carry a second one.
func (Dialect) NormalizeDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql DSN", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = false
	cfg.InterpolateParams = false
	return cfg.FormatDSN(), nil
}
