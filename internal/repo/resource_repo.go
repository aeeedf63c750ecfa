package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = "id, user_id, ts, data, created_at, updated_at"

// InsertRecord 插入一条资源记录，回填 id 与时间戳
func InsertRecord(ctx context.Context, db *pgxpool.Pool, spec domain.ResourceSpec, r *domain.Record) error {
	row := db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, ts, data, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, spec.Table), r.UserID, r.TS, r.Data)
	return row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// ListRecords 按用户、时间窗口与 data 等值条件查询，ts 倒序
func ListRecords(ctx context.Context, db *pgxpool.Pool, spec domain.ResourceSpec, f domain.ListFilter) ([]domain.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id=$1", recordColumns, spec.Table)
	args := []any{f.UserID}
	if f.Start != nil {
		args = append(args, *f.Start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	// 固定顺序，保证同样的过滤条件生成同样的 SQL
	keys := make([]string, 0, len(f.Equals))
	for k := range f.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, f.Equals[k])
		query += fmt.Sprintf(" AND data->>$%d = $%d", len(args)-1, len(args))
	}
	query += " ORDER BY ts DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.Record{}
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.TS, &r.Data, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// GetRecord 根据 id 查询
func GetRecord(ctx context.Context, db *pgxpool.Pool, spec domain.ResourceSpec, id int64) (*domain.Record, error) {
	row := db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id=$1", recordColumns, spec.Table), id)
	var r domain.Record
	if err := row.Scan(&r.ID, &r.UserID, &r.TS, &r.Data, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// UpdateRecord 整体替换 data 与 ts
func UpdateRecord(ctx context.Context, db *pgxpool.Pool, spec domain.ResourceSpec, r *domain.Record) error {
	row := db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s
		SET ts=$2, data=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING user_id, created_at, updated_at
	`, spec.Table), r.ID, r.TS, r.Data)
	if err := row.Scan(&r.UserID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return notFound(err)
	}
	return nil
}

// DeleteRecord 删除一条记录
func DeleteRecord(ctx context.Context, db *pgxpool.Pool, spec domain.ResourceSpec, id int64) error {
	tag, err := db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id=$1", spec.Table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
