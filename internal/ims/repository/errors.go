package repository

import (
	"errors"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate 唯一约束冲突
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry MySQL ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// DuplicateError 唯一约束冲突，Field 为冲突的列名
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s: %v", e.Field, e.Err)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrDuplicate) 成立
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// ClassifyError 将各数据库驱动的唯一约束错误统一为 *DuplicateError
// 其他错误原样返回
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return err
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &DuplicateError{Field: sqliteColumn(sqliteErr.Error()), Err: err}
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE") {
			return &DuplicateError{Field: sqliteColumn(sqliteErr.Error()), Err: err}
		}
		return err
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number == mysqlDuplicateEntry {
			return &DuplicateError{Field: mysqlColumn(mysqlErr.Message), Err: err}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.UniqueViolation {
			return &DuplicateError{Field: indexColumn(pgErr.ConstraintName), Err: err}
		}
		return err
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DuplicateError{Field: "name", Err: err}
	}
	return err
}

// sqliteColumn 从 "UNIQUE constraint failed: inference_instances.name" 中解析列名
func sqliteColumn(msg string) string {
	const marker = "constraint failed: "
	idx := strings.LastIndex(msg, marker)
	if idx < 0 {
		return "name"
	}
	rest := msg[idx+len(marker):]
	if end := strings.IndexAny(rest, ", ("); end >= 0 {
		rest = rest[:end]
	}
	if _, col, ok := strings.Cut(rest, "."); ok && col != "" {
		return col
	}
	return "name"
}

// mysqlColumn 从 "Duplicate entry 'x' for key 'inference_instances.idx_inference_instances_name'" 中解析列名
func mysqlColumn(msg string) string {
	const marker = "for key '"
	idx := strings.LastIndex(msg, marker)
	if idx < 0 {
		return "name"
	}
	key := strings.TrimSuffix(msg[idx+len(marker):], "'")
	if _, after, ok := strings.Cut(key, "."); ok {
		key = after
	}
	return indexColumn(key)
}

// indexColumn 将 idx_<table>_<column> 形式的索引名还原为列名
func indexColumn(index string) string {
	for _, prefix := range []string{"idx_inference_instances_", "inference_instances_"} {
		if col, ok := strings.CutPrefix(index, prefix); ok && col != "" {
			return strings.TrimSuffix(col, "_key")
		}
	}
	return "name"
}
