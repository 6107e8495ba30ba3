// Package member_repo provides PostgreSQL implementations for member repositories.
// Queries run on the transaction in force for the context, or on the pool.
package member_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"txscope/internal/core/apperror"
	"txscope/internal/domain/member"
	"txscope/internal/infrastructure/storage/postgres"
)

const (
	memberTable = "members"
	logTable    = "member_logs"

	uniqueViolation = "23505"
)

// MemberRepo implements member.Repository.
type MemberRepo struct {
	res *postgres.Resource
}

// Compile-time check that MemberRepo implements member.Repository.
var _ member.Repository = (*MemberRepo)(nil)

// NewMemberRepo creates a new member repository.
func NewMemberRepo(res *postgres.Resource) *MemberRepo {
	return &MemberRepo{res: res}
}

// Save inserts a member.
func (r *MemberRepo) Save(ctx context.Context, m *member.Member) error {
	if err := insert(ctx, r.res, memberTable, m); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewDuplicate("member", "username", m.Username).WithCause(err)
		}
		return err
	}
	return nil
}

// FindByUsername retrieves a member by username.
func (r *MemberRepo) FindByUsername(ctx context.Context, username string) (*member.Member, error) {
	var m member.Member
	if err := findOne(ctx, r.res, memberTable, &m, squirrel.Eq{"username": username}); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("member", username)
		}
		return nil, fmt.Errorf("find member by username: %w", err)
	}
	return &m, nil
}

// LogRepo implements member.LogRepository.
type LogRepo struct {
	res *postgres.Resource
}

// Compile-time check that LogRepo implements member.LogRepository.
var _ member.LogRepository = (*LogRepo)(nil)

// NewLogRepo creates a new log repository.
func NewLogRepo(res *postgres.Resource) *LogRepo {
	return &LogRepo{res: res}
}

// Save inserts a log entry.
func (r *LogRepo) Save(ctx context.Context, l *member.Log) error {
	return insert(ctx, r.res, logTable, l)
}

// FindByMessage retrieves the newest log entry with the message.
func (r *LogRepo) FindByMessage(ctx context.Context, message string) (*member.Log, error) {
	var l member.Log
	if err := findOne(ctx, r.res, logTable, &l, squirrel.Eq{"message": message}); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("member log", message)
		}
		return nil, fmt.Errorf("find log by message: %w", err)
	}
	return &l, nil
}

func insert(ctx context.Context, res *postgres.Resource, table string, row any) error {
	sql, args, err := postgres.Builder().
		Insert(table).
		SetMap(postgres.Values(row)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := res.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func findOne[T any](ctx context.Context, res *postgres.Resource, table string, dst *T, where squirrel.Sqlizer) error {
	sql, args, err := postgres.Builder().
		Select(postgres.Columns[T]()...).
		From(table).
		Where(where).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, res.Querier(ctx), dst, sql, args...)
}
