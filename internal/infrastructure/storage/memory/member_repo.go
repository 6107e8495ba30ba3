package memory

import (
	"context"
	"errors"

	"txscope/internal/core/apperror"
	"txscope/internal/domain/member"
)

const (
	tableMembers    = "members"
	tableMemberLogs = "member_logs"
)

// MemberRepo implements member.Repository over a Store.
type MemberRepo struct {
	store *Store
}

// Compile-time check that MemberRepo implements member.Repository.
var _ member.Repository = (*MemberRepo)(nil)

// NewMemberRepo creates a new member repository.
func NewMemberRepo(store *Store) *MemberRepo {
	return &MemberRepo{store: store}
}

// Save inserts a member keyed by username.
func (r *MemberRepo) Save(ctx context.Context, m *member.Member) error {
	var existing member.Member
	err := r.store.Get(ctx, tableMembers, m.Username, &existing)
	if err == nil {
		return apperror.NewDuplicate("member", "username", m.Username)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return r.store.Put(ctx, tableMembers, m.Username, m)
}

// FindByUsername returns the member with the given username.
func (r *MemberRepo) FindByUsername(ctx context.Context, username string) (*member.Member, error) {
	var m member.Member
	if err := r.store.Get(ctx, tableMembers, username, &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NewNotFound("member", username)
		}
		return nil, err
	}
	return &m, nil
}

// LogRepo implements member.LogRepository over a Store.
type LogRepo struct {
	store *Store
}

// Compile-time check that LogRepo implements member.LogRepository.
var _ member.LogRepository = (*LogRepo)(nil)

// NewLogRepo creates a new log repository.
func NewLogRepo(store *Store) *LogRepo {
	return &LogRepo{store: store}
}

// Save stores the log entry keyed by message.
func (r *LogRepo) Save(ctx context.Context, l *member.Log) error {
	return r.store.Put(ctx, tableMemberLogs, l.Message, l)
}

// FindByMessage returns the log entry with the given message.
func (r *LogRepo) FindByMessage(ctx context.Context, message string) (*member.Log, error) {
	var l member.Log
	if err := r.store.Get(ctx, tableMemberLogs, message, &l); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NewNotFound("member log", message)
		}
		return nil, err
	}
	return &l, nil
}
