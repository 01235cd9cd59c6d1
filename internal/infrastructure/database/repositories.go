package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/foliohq/entitlement-service/internal/adapter/repository"
	domainRepo "github.com/foliohq/entitlement-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Entitlement domainRepo.EntitlementRepository
	EventLog    domainRepo.EventLogRepository
	Plan        domainRepo.PlanRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Entitlement: repository.NewEntitlementRepository(db, logger),
		EventLog:    repository.NewEventLogRepository(db, logger),
		Plan:        repository.NewPlanRepository(db, logger),
	}
}
