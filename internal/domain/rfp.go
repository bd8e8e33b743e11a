package domain

import (
	"time"

	"github.com/google/uuid"
)

// RFPStatus — статус найденной opportunity.
type RFPStatus string

const (
	// RFPStatusDiscovered — RFP найден при сканировании.
	RFPStatusDiscovered RFPStatus = "DISCOVERED"

	// RFPStatusExtracted — детали и документы RFP извлечены.
	RFPStatusExtracted RFPStatus = "EXTRACTED"

	// RFPStatusMonitored — RFP отслеживается на изменения.
	RFPStatusMonitored RFPStatus = "MONITORED"

	// RFPStatusSubmitted — заявка по RFP подана.
	RFPStatusSubmitted RFPStatus = "SUBMITTED"

	// RFPStatusClosed — срок подачи истёк или RFP снят порталом.
	RFPStatusClosed RFPStatus = "CLOSED"
)

// RFP — найденная на портале opportunity (request for proposal).
//
// RFP создаётся фазой extraction discovery workflow'а. Детали
// (title, agency, дедлайн) приходят от внешнего automation-сервиса
// и хранятся как есть — ядро оркестрации их не интерпретирует.
type RFP struct {
	// ID — уникальный идентификатор RFP.
	ID uuid.UUID `json:"id"`

	// PortalID — портал, на котором RFP найден.
	PortalID uuid.UUID `json:"portal_id"`

	// ExternalID — идентификатор RFP на стороне портала.
	ExternalID string `json:"external_id"`

	// Title — заголовок opportunity.
	Title string `json:"title"`

	// Agency — организация-заказчик.
	Agency string `json:"agency,omitempty"`

	// URL — ссылка на страницу RFP на портале.
	URL string `json:"url,omitempty"`

	// Status — текущий статус RFP.
	Status RFPStatus `json:"status"`

	// Deadline — срок подачи заявки.
	Deadline *time.Time `json:"deadline,omitempty"`

	// Details — извлечённые детали (требования, документы и т.д.).
	Details map[string]any `json:"details,omitempty"`

	// DiscoveredAt — время обнаружения.
	DiscoveredAt time.Time `json:"discovered_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Portal — портал закупок, на котором ищутся opportunities.
type Portal struct {
	// ID — уникальный идентификатор портала.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя портала (например, "sam-gov", "state-nj").
	Name string `json:"name"`

	// BaseURL — адрес портала для automation-сервиса.
	BaseURL string `json:"base_url"`

	// AuthKind — способ авторизации: "credentials", "token", "none".
	AuthKind string `json:"auth_kind"`

	// IsActive — неактивные порталы не сканируются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время регистрации портала.
	CreatedAt time.Time `json:"created_at"`
}

// PortalWithCounts — портал вместе с количеством найденных RFP.
// Используется списочным API.
type PortalWithCounts struct {
	Portal

	// RFPCount — общее количество RFP, найденных на портале.
	RFPCount int `json:"rfp_count"`
}
