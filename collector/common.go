package collector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

var errNoRows = errors.New("query returned no rows")

func formatInt64(val int64) string {
	return strconv.FormatInt(val, 10)
}

func formatFloat64(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// firstRow returns rows[0]; extra rows are ignored.
func firstRow(rows []dbutil.Row) (dbutil.Row, error) {
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return rows[0], nil
}

func cellAt(r dbutil.Row, i int) (interface{}, error) {
	if i < 0 || i >= len(r) {
		return nil, fmt.Errorf("column %d out of range, row has %d columns", i, len(r))
	}
	return r[i], nil
}

// floatAt coerces column i to float64. NULL is an error.
func floatAt(r dbutil.Row, i int) (float64, error) {
	v, err := cellAt(r, i)
	if err != nil {
		return 0, err
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("column %d: %w", i, err)
	}
	return f, nil
}

// stringAt renders column i as a label value. NULL becomes "".
func stringAt(r dbutil.Row, i int) (string, error) {
	v, err := cellAt(r, i)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("unexpected NULL value")
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		// DECIMAL, NUMERIC and MONEY arrive as their text representation.
		return parseFloat(string(n))
	case string:
		return parseFloat(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", s)
	}
	return f, nil
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case int64:
		return formatInt64(s)
	case float64:
		return formatFloat64(s)
	case bool:
		return strconv.FormatBool(s)
	case time.Time:
		return formatTime(s)
	default:
		return fmt.Sprint(v)
	}
}
