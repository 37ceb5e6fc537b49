package common

import (
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gosqlmysql "github.com/go-sql-driver/mysql"
)

// NormalizeMySQLDSN accepts either a go-sql-driver DSN or a mysql:// URL and
// returns a driver DSN with parseTime enabled, so DATETIME and TIMESTAMP
// columns scan into time.Time. Timestamps are interpreted as UTC unless the
// caller named a loc option.
func NormalizeMySQLDSN(raw string) (string, error) {
	dsn := raw
	if strings.HasPrefix(strings.ToLower(raw), "mysql://") {
		converted, err := mysqlURLToDSN(raw)
		if err != nil {
			return "", err
		}
		dsn = converted
	}

	cfg, err := gosqlmysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	if !dsnNamesLocation(dsn) {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

func mysqlURLToDSN(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql url")
	}
	if parsed.Host == "" {
		return "", errors.New("mysql url has no host")
	}

	var b strings.Builder
	if parsed.User != nil {
		b.WriteString(parsed.User.Username())
		if pwd, ok := parsed.User.Password(); ok {
			b.WriteByte(':')
			b.WriteString(pwd)
		}
		b.WriteByte('@')
	}
	b.WriteString("tcp(")
	b.WriteString(parsed.Host)
	b.WriteString(")/")
	b.WriteString(strings.TrimPrefix(parsed.Path, "/"))
	if parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(parsed.RawQuery)
	}
	return b.String(), nil
}

func dsnNamesLocation(dsn string) bool {
	_, query, found := strings.Cut(dsn, "?")
	if !found {
		return false
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return false
	}
	return values.Has("loc")
}
