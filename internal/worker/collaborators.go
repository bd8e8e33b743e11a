package worker

import (
	"context"
	"net/http"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/portal"
)

// automationCollaborator выполняет один шаг автоматизации портала.
// Каждый тип задачи соответствует своему endpoint'у.
type automationCollaborator struct {
	client *portal.Client
	action string
}

func (a *automationCollaborator) Perform(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return a.client.Do(ctx, http.MethodPost, "/api/v1/automation/"+a.action, inputs)
}

// scanCollaborator выполняет поиск RFP на портале.
// Отдельная реализация: использует поисковый endpoint и считает находки.
type scanCollaborator struct {
	client *portal.Client
}

func (s *scanCollaborator) Perform(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	criteria, _ := inputs["search_criteria"].(map[string]any)

	records, err := s.client.SearchRFPs(ctx, criteria)
	if err != nil {
		return nil, err
	}

	items := make([]any, len(records))
	for i, r := range records {
		items[i] = r
	}

	return map[string]any{
		"records":    items,
		"rfps_found": len(records),
	}, nil
}

// NewPortalRegistry создаёт реестр со стандартными коллабораторами
// для всех типов задач discovery и submission pipelines.
func NewPortalRegistry(client *portal.Client) *Registry {
	r := NewRegistry()

	r.Register(domain.TaskAuthentication, &automationCollaborator{client: client, action: "authenticate"})
	r.Register(domain.TaskScanning, &scanCollaborator{client: client})
	r.Register(domain.TaskExtraction, &automationCollaborator{client: client, action: "extract"})
	r.Register(domain.TaskMonitoring, &automationCollaborator{client: client, action: "monitor"})
	r.Register(domain.TaskPreflight, &automationCollaborator{client: client, action: "preflight"})
	r.Register(domain.TaskFilling, &automationCollaborator{client: client, action: "fill"})
	r.Register(domain.TaskUploading, &automationCollaborator{client: client, action: "upload"})
	r.Register(domain.TaskSubmitting, &automationCollaborator{client: client, action: "submit"})
	r.Register(domain.TaskVerifying, &automationCollaborator{client: client, action: "verify"})

	return r
}
