package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, items and events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByIDsForUpdate(ctx context.Context, ids []int64) ([]models.Order, error)
	FindByCheckoutRef(ctx context.Context, ref string) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateFields(ctx context.Context, id int64, updates map[string]any) error
	AppendEvents(ctx context.Context, events []models.OrderEvent) error
}

// Notifier receives orders whose customers should be emailed. Calls must not block.
type Notifier interface {
	NotifyOrderConfirmed(ctx context.Context, order models.Order)
	NotifyOrderShipped(ctx context.Context, order models.Order)
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error)
	FindByCheckoutRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Order, error)
	Get(ctx context.Context, id int64) (*OrderDetail, error)
	List(ctx context.Context, filter ListFilter) (pagination.Page[OrderSummary], error)
	Transition(ctx context.Context, id int64, to enums.OrderStatus, actor string) (*OrderDetail, error)
	BulkTransition(ctx context.Context, ids []int64, to enums.OrderStatus, actor string) (*BulkResult, error)
	AddNote(ctx context.Context, id int64, note, actor string) (*OrderDetail, error)
	Track(ctx context.Context, orderNumber, email string) (*TrackingView, error)
}
