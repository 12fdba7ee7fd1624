package domain

import "time"

// Inventory — строка остатка, ключ (ProductID, WarehouseID).
type Inventory struct {
	ProductID   string
	WarehouseID string
	Quantity    int64
	Reserved    int64
	Version     int64
	UpdatedAt   time.Time
}

// Available возвращает quantity - reserved. Если reserved отсутствует в
// старой записи (legacy-строка без этого поля), вызывающий код должен
// принять его за 0 до построения Inventory — см. internal/store.
func (i Inventory) Available() int64 {
	return i.Quantity - i.Reserved
}
