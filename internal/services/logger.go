package services

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger tags every event with the owning service id.
type ServiceLogger struct {
	zerolog.Logger
}

func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{
		Logger: log.With().Str("service", svc.ID()).Logger(),
	}
}

// Pool returns a child logger tagged with a pool address.
func (l *ServiceLogger) Pool(addr solana.PublicKey) *zerolog.Logger {
	child := l.With().Str("pool", addr.String()).Logger()
	return &child
}
