package domain

import (
	"time"
)

// CatalogEntry maps one order-source item (by source name and size) to
// the POS variant that represents it. SKU is unique across the catalog;
// the source name plus size pair is unique so concurrent auto-creation
// converges on a single row.
type CatalogEntry struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	SKU            string    `json:"sku" gorm:"type:text;not null;uniqueIndex:ux_catalog_sku"`
	Handle         string    `json:"handle" gorm:"type:text;not null"`
	CanonicalName  string    `json:"canonical_name" gorm:"type:text;not null"`
	Category       string    `json:"category" gorm:"type:text"`
	SourceItemName string    `json:"source_item_name" gorm:"type:text;not null;uniqueIndex:ux_catalog_source_name_size,priority:1"`
	Size           string    `json:"size" gorm:"type:text;not null;default:'';uniqueIndex:ux_catalog_source_name_size,priority:2"`
	Price          float64   `json:"price" gorm:"not null;default:0"`
	POSItemID      string    `json:"pos_item_id" gorm:"column:pos_item_id;type:text"`
	POSVariantID   string    `json:"pos_variant_id" gorm:"column:pos_variant_id;type:text"`
	AutoCreated    bool      `json:"auto_created" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CatalogEntry) TableName() string { return "catalog_entries" }
