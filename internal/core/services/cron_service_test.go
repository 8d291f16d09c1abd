package services

import (
	"testing"

	"libraryhub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronRegister(t *testing.T) {
	cfg := config.SchedulerConfig{
		OverdueSweepSpec: "0 1 * * *",
		DueSoonSpec:      "0 8 * * *",
		OutboxSpec:       "@every 1m",
	}
	s := NewCronService(cfg, nil, nil, nil)
	require.NoError(t, s.Register())
	assert.Len(t, s.Entries(), 4)
	assert.Contains(t, s.Entries(), "overdue_sweep")
	assert.Contains(t, s.Entries(), "token_purge")

	s.Start()
	s.Stop()
}

func TestCronRegisterSkipsEmptyAndRejectsInvalidSpecs(t *testing.T) {
	disabled := NewCronService(config.SchedulerConfig{OutboxSpec: "@every 30s"}, nil, nil, nil)
	require.NoError(t, disabled.Register())
	assert.Len(t, disabled.Entries(), 2, "outbox and token purge only")

	invalid := NewCronService(config.SchedulerConfig{OverdueSweepSpec: "every day at one"}, nil, nil, nil)
	err := invalid.Register()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overdue_sweep")
}
