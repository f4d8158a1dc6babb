package inventory

import (
	"github.com/kjk/entitystore/entitylog"
	"github.com/kjk/entitystore/keyedstore"
)

// Warehouse keeps electronics and groceries in separate stores.
// Ids are assigned per kind, starting at 1.
type Warehouse struct {
	Electronics *keyedstore.Store[ElectronicItem]
	Groceries   *keyedstore.Store[GroceryItem]

	nextElectronicID int
	nextGroceryID    int
}

func NewWarehouse() *Warehouse {
	return &Warehouse{
		Electronics:      keyedstore.New[ElectronicItem](),
		Groceries:        keyedstore.New[GroceryItem](),
		nextElectronicID: 1,
		nextGroceryID:    1,
	}
}

// nextFreeID returns the first id >= id not used in s. Stores are
// exported and can be filled directly, e.g. from a loaded log.
func nextFreeID[T keyedstore.Entity](s *keyedstore.Store[T], id int) int {
	if id < 1 {
		id = 1
	}
	for s.Contains(id) {
		id++
	}
	return id
}

// AddElectronic adds a new electronic item and returns it with assigned id.
// The id is not used up if the item is invalid.
func (w *Warehouse) AddElectronic(name string, qty int, brand string, warrantyMonths int) (ElectronicItem, error) {
	w.nextElectronicID = nextFreeID(w.Electronics, w.nextElectronicID)
	e := ElectronicItem{
		ID:             w.nextElectronicID,
		Name:           name,
		Quantity:       qty,
		Brand:          brand,
		WarrantyMonths: warrantyMonths,
	}
	if err := w.Electronics.Add(e); err != nil {
		return ElectronicItem{}, err
	}
	w.nextElectronicID++
	return e, nil
}

// AddGrocery adds a new grocery item and returns it with assigned id
func (w *Warehouse) AddGrocery(name string, qty int, expiry Date) (GroceryItem, error) {
	w.nextGroceryID = nextFreeID(w.Groceries, w.nextGroceryID)
	g := GroceryItem{
		ID:         w.nextGroceryID,
		Name:       name,
		Quantity:   qty,
		ExpiryDate: expiry,
	}
	if err := w.Groceries.Add(g); err != nil {
		return GroceryItem{}, err
	}
	w.nextGroceryID++
	return g, nil
}

// ExpiredGroceries returns groceries that expired before today
func (w *Warehouse) ExpiredGroceries(today Date) []GroceryItem {
	return w.Groceries.Find(func(g GroceryItem) bool {
		return g.IsExpired(today)
	})
}

// NewItemLog returns an empty inventory log bound to path
func NewItemLog(path string) *entitylog.Log[Item] {
	return entitylog.New[Item](path)
}

func exportStore[T keyedstore.Entity](s *keyedstore.Store[T], path string) (*entitylog.Log[T], error) {
	l := entitylog.New[T](path)
	l.AddAll(s.GetAll()...)
	if err := l.SaveToFile(); err != nil {
		return nil, err
	}
	return l, nil
}

// ExportElectronics copies electronics to a log and saves it to path
func (w *Warehouse) ExportElectronics(path string) (*entitylog.Log[ElectronicItem], error) {
	return exportStore(w.Electronics, path)
}

// ExportGroceries copies groceries to a log and saves it to path
func (w *Warehouse) ExportGroceries(path string) (*entitylog.Log[GroceryItem], error) {
	return exportStore(w.Groceries, path)
}
