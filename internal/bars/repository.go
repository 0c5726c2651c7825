package bars

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository interface for bar catalogue operations
type Repository interface {
	GetBarByID(ctx context.Context, id uuid.UUID) (*Bar, error)
	GetOpeningHours(ctx context.Context, barID uuid.UUID) ([]OpeningHour, error)
	GetTableTypes(ctx context.Context, barID uuid.UUID) ([]TableType, error)
	GetTables(ctx context.Context, barID uuid.UUID, tableTypeID *uuid.UUID) ([]BarTable, error)
	TableExists(ctx context.Context, barID, tableID uuid.UUID) (bool, error)

	// Seeding
	CreateBar(ctx context.Context, bar *Bar) error
	CreateTables(ctx context.Context, tables []BarTable) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetBarByID(ctx context.Context, id uuid.UUID) (*Bar, error) {
	var bar Bar
	if err := r.db.WithContext(ctx).First(&bar, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bar, nil
}

func (r *repository) GetOpeningHours(ctx context.Context, barID uuid.UUID) ([]OpeningHour, error) {
	var hours []OpeningHour
	err := r.db.WithContext(ctx).
		Where("bar_id = ?", barID).
		Order("weekday ASC").
		Find(&hours).Error
	return hours, err
}

func (r *repository) GetTableTypes(ctx context.Context, barID uuid.UUID) ([]TableType, error) {
	var types []TableType
	err := r.db.WithContext(ctx).
		Where("bar_id = ?", barID).
		Order("name ASC").
		Find(&types).Error
	return types, err
}

func (r *repository) GetTables(ctx context.Context, barID uuid.UUID, tableTypeID *uuid.UUID) ([]BarTable, error) {
	var tables []BarTable
	query := r.db.WithContext(ctx).
		Preload("TableType").
		Where("bar_id = ? AND is_active = ?", barID, true)

	if tableTypeID != nil {
		query = query.Where("table_type_id = ?", *tableTypeID)
	}

	err := query.Order("name ASC").Find(&tables).Error
	return tables, err
}

func (r *repository) TableExists(ctx context.Context, barID, tableID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&BarTable{}).
		Where("id = ? AND bar_id = ? AND is_active = ?", tableID, barID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateBar(ctx context.Context, bar *Bar) error {
	return r.db.WithContext(ctx).Create(bar).Error
}

func (r *repository) CreateTables(ctx context.Context, tables []BarTable) error {
	if len(tables) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("TableType").Create(&tables).Error
}
