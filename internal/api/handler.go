package api

import (
	"log/slog"

	"github.com/shaiso/Tendera/internal/aggregator"
	"github.com/shaiso/Tendera/internal/broadcast"
	"github.com/shaiso/Tendera/internal/mq"
	"github.com/shaiso/Tendera/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	portalRepo   *repo.PortalRepo
	rfpRepo      *repo.RFPRepo
	workflowRepo *repo.WorkflowRepo
	workItemRepo *repo.WorkItemRepo
	scheduleRepo *repo.ScheduleRepo
	aggregator   *aggregator.Aggregator
	broadcaster  *broadcast.Broadcaster
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	PortalRepo   *repo.PortalRepo
	RFPRepo      *repo.RFPRepo
	WorkflowRepo *repo.WorkflowRepo
	WorkItemRepo *repo.WorkItemRepo
	ScheduleRepo *repo.ScheduleRepo
	Aggregator   *aggregator.Aggregator
	Broadcaster  *broadcast.Broadcaster
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		portalRepo:   cfg.PortalRepo,
		rfpRepo:      cfg.RFPRepo,
		workflowRepo: cfg.WorkflowRepo,
		workItemRepo: cfg.WorkItemRepo,
		scheduleRepo: cfg.ScheduleRepo,
		aggregator:   cfg.Aggregator,
		broadcaster:  cfg.Broadcaster,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
