// Package repository 提供数据持久化层实现
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动，不需要 CGO
)

// sqlitePragmas 写事务使用 BEGIN IMMEDIATE，保证同一实例的并发更新串行执行
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite&_txlock=immediate"

// Repository 数据库仓库
type Repository struct {
	db      *gorm.DB
	dialect config.Dialect
}

// New 根据配置连接数据库并执行迁移
func New(cfg config.DatabaseConfig) (*Repository, error) {
	dialect, dsn, err := config.ParseDatabaseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	dialector, err := openDialector(dialect, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 不开启 TranslateError，ClassifyError 需要驱动原始错误中的约束名
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &Repository{db: db, dialect: dialect}
	if err := repo.Migrate(); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func openDialector(dialect config.Dialect, dsn string) (gorm.Dialector, error) {
	switch dialect {
	case config.DialectSQLite:
		// 确保数据库目录存在
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		full := dsn + "?" + sqlitePragmas
		// 直接使用 database/sql + modernc.org/sqlite 创建连接，然后传递给 GORM
		sqlDB, err := sql.Open("sqlite", full)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return sqlite.Dialector{DriverName: "sqlite", DSN: full, Conn: sqlDB}, nil
	case config.DialectMySQL:
		return mysql.New(mysql.Config{DSN: dsn}), nil
	case config.DialectPostgres:
		return postgres.New(postgres.Config{DSN: dsn}), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
}

// Migrate 创建或更新表结构
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(
		&model.Instance{},
		&model.InstanceHistory{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DB 返回 GORM 数据库实例（用于 Repository 实现）
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Dialect 返回数据库类型
func (r *Repository) Dialect() config.Dialect {
	return r.dialect
}

// WithContext 返回带上下文的数据库实例
func (r *Repository) WithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Transaction 在一个事务中执行 fn，fn 返回错误或 panic 时整体回滚
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Ping 检查数据库连接
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats 返回连接池统计
func (r *Repository) Stats() (sql.DBStats, error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// Close 关闭数据库连接
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
