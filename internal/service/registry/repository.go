package registry

import (
	"context"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// CriticalLabelRepository persists the watch list.
type CriticalLabelRepository interface {
	List(ctx context.Context, onlyActive bool) ([]domain.CriticalLabel, error)
	Create(ctx context.Context, l *domain.CriticalLabel) error
	Update(ctx context.Context, l *domain.CriticalLabel) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.CriticalLabel, error)
}

// NotificationRepository persists change notifications and details.
// CreateIfAbsent must enforce the (label, change type, week, year)
// uniqueness key at the store layer and return ErrDuplicate on conflict.
type NotificationRepository interface {
	CreateIfAbsent(ctx context.Context, n *domain.ChangeNotification) error
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]domain.ChangeNotification, int, error)
	Get(ctx context.Context, id string) (*domain.ChangeNotification, error)
	MarkRead(ctx context.Context, id string, read bool) error
}
