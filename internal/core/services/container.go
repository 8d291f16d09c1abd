package services

import (
	"time"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"

	"gorm.io/gorm"
)

// Container holds every service wired to one database and clock
type Container struct {
	Auth          *AuthService
	Users         *UserService
	Inventory     *InventoryService
	Requests      *RequestService
	Loans         *LoanService
	Fines         *FineService
	Sweeps        *SweepService
	Donations     *DonationService
	Dashboard     *DashboardService
	Notifications *NotificationService
	Cron          *CronService
}

// NewContainer builds the services. A nil now uses SystemClock.
func NewContainer(db *gorm.DB, cfg *config.Config, notifier Notifier, now func() time.Time) *Container {
	if now == nil {
		now = SystemClock
	}
	outbox := NewOutbox(now)

	c := &Container{
		Auth:          NewAuthService(db, cfg.JWT, now),
		Users:         NewUserService(repositories.NewUserRepository(db)),
		Inventory:     NewInventoryService(db),
		Requests:      NewRequestService(db, cfg.Lending, outbox, now),
		Loans:         NewLoanService(db, cfg.Lending, outbox, now),
		Fines:         NewFineService(db, cfg.Lending, outbox, now),
		Sweeps:        NewSweepService(db, cfg.Lending, cfg.Scheduler, outbox, now),
		Donations:     NewDonationService(db, outbox, now),
		Dashboard:     NewDashboardService(db, now),
		Notifications: NewNotificationService(db, notifier, cfg.Scheduler, now),
	}
	c.Cron = NewCronService(cfg.Scheduler, c.Sweeps, c.Notifications, c.Auth)
	return c
}
