package domain

// Product — read-mostly каталожная запись. CRUD над каталогом — внешний
// участник вне периметра системы; здесь продукт используется только для
// проверки active-флага при создании заказа.
type Product struct {
	ProductID   string
	Name        string
	Description string
	Price       Money
	Category    string
	ImageURL    string
	Active      bool
}
