package member

import (
	"context"
	"strings"

	"txscope/internal/core/tx"
	"txscope/pkg/logger"
)

// Config holds service settings.
type Config struct {
	// LogPropagation is the propagation of the log scope: REQUIRED shares the
	// caller's transaction, REQUIRES_NEW isolates the log write.
	LogPropagation tx.Propagation
}

// Service registers members.
type Service struct {
	txm    tx.Manager
	repo   Repository
	logs   LogRepository
	logDef tx.Definition
}

// NewService creates a new member service.
func NewService(txm tx.Manager, repo Repository, logs LogRepository, cfg Config) *Service {
	logDef := tx.Named("member.log")
	logDef.Propagation = cfg.LogPropagation
	return &Service{
		txm:    txm,
		repo:   repo,
		logs:   logs,
		logDef: logDef,
	}
}

// JoinV1 saves the member and the log entry without an enclosing scope: each
// step commits or rolls back on its own. A log failure leaves the member
// saved and is returned.
func (s *Service) JoinV1(ctx context.Context, username string) error {
	m := NewMember(username)
	if err := m.Validate(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "join v1: saving member", "username", m.Username)
	if err := s.saveMember(ctx, m); err != nil {
		return err
	}
	logger.Info(ctx, "join v1: saving log", "username", m.Username)
	return s.saveLog(ctx, NewLog(m.Username))
}

// Join saves the member and the log entry inside one REQUIRED scope. Any
// failure rolls back both.
func (s *Service) Join(ctx context.Context, username string) error {
	m := NewMember(username)
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txm.WithScope(ctx, tx.Named("member.join"), func(ctx context.Context) error {
		if err := s.saveMember(ctx, m); err != nil {
			return err
		}
		return s.saveLog(ctx, NewLog(m.Username))
	})
}

// JoinV2 saves the member and the log entry inside one REQUIRED scope and
// recovers from a log failure. With a REQUIRED log scope the recovered
// failure has already marked the shared transaction rollback-only, so the
// join ends in UNEXPECTED_ROLLBACK and nothing is saved. With REQUIRES_NEW
// only the log write is lost.
func (s *Service) JoinV2(ctx context.Context, username string) error {
	m := NewMember(username)
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txm.WithScope(ctx, tx.Named("member.join"), func(ctx context.Context) error {
		if err := s.saveMember(ctx, m); err != nil {
			return err
		}
		if err := s.saveLog(ctx, NewLog(m.Username)); err != nil {
			logger.Warn(ctx, "log save failed, returning normally", "username", m.Username, "error", err)
		}
		return nil
	})
}

// FindMember returns the member with the given username.
func (s *Service) FindMember(ctx context.Context, username string) (*Member, error) {
	return s.repo.FindByUsername(ctx, username)
}

// FindLog returns the log entry with the given message.
func (s *Service) FindLog(ctx context.Context, message string) (*Log, error) {
	return s.logs.FindByMessage(ctx, message)
}

func (s *Service) saveMember(ctx context.Context, m *Member) error {
	return s.txm.WithScope(ctx, tx.Named("member.save"), func(ctx context.Context) error {
		return s.repo.Save(ctx, m)
	})
}

func (s *Service) saveLog(ctx context.Context, l *Log) error {
	return s.txm.WithScope(ctx, s.logDef, func(ctx context.Context) error {
		if err := s.logs.Save(ctx, l); err != nil {
			return err
		}
		if strings.Contains(l.Message, logFailureMarker) {
			logger.Info(ctx, "log step failing on purpose", "message", l.Message)
			return tx.NewFailure(KindLogFailure, "log entry could not be persisted")
		}
		return nil
	})
}
