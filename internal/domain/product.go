package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUnit is applied when a product is submitted without a unit of measure.
const DefaultUnit = "pcs"

// CategoryRef is the denormalized category carried on a product.
type CategoryRef struct {
	ID   ServerID
	Name string
}

// Product is a sellable catalog item.
type Product struct {
	ID      EntityID
	OwnerID OwnerID

	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Unit        string

	CategoryID *ServerID
	Category   *CategoryRef

	CreatedAt time.Time
	UpdatedAt time.Time

	// Updating is a transient UI marker set while an update is in flight.
	Updating bool
}

// Clone returns a copy that shares no pointers with p.
func (p Product) Clone() Product {
	out := p
	out.Description = cloneStringPtr(p.Description)
	out.CategoryID = cloneServerIDPtr(p.CategoryID)
	if p.Category != nil {
		c := *p.Category
		out.Category = &c
	}
	return out
}

// ProductInput holds raw product form values as typed by the user.
type ProductInput struct {
	Name        string
	Description string
	Price       string
	Stock       string
	Unit        string
	CategoryID  string
}

// ProductFields are coerced product values, used both for the optimistic
// placeholder and for the create request.
type ProductFields struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Unit        string
	CategoryID  *ServerID
}

// Fields coerces the raw input. Empty price and stock default to zero, an empty
// unit to DefaultUnit, and empty description/category to nil.
func (in ProductInput) Fields() (ProductFields, error) {
	errs := inputErrors{}
	f := ProductFields{
		Name:        Normalize(in.Name),
		Description: optionalText(in.Description),
		Price:       parsePrice(in.Price, errs),
		Stock:       parseStock(in.Stock, errs),
		Unit:        Normalize(in.Unit),
		CategoryID:  optionalServerID(in.CategoryID),
	}
	if f.Name == "" {
		errs.add("name", "must be non-empty")
	}
	if f.Unit == "" {
		f.Unit = DefaultUnit
	}
	if err := errs.err(); err != nil {
		return ProductFields{}, err
	}
	return f, nil
}

// ProductPatch holds raw form values for a partial product update.
type ProductPatch struct {
	Name        Optional[string]
	Description Optional[string]
	Price       Optional[string]
	Stock       Optional[string]
	Unit        Optional[string]
	CategoryID  Optional[string]
}

// ProductChanges is a coerced product diff: the optimistic projection and the
// update request body.
type ProductChanges struct {
	Name        Optional[string]
	Description Optional[string]
	Price       Optional[decimal.Decimal]
	Stock       Optional[int]
	Unit        Optional[string]
	CategoryID  Optional[ServerID]
}

// IsEmpty reports whether no field is specified.
func (c ProductChanges) IsEmpty() bool {
	return !c.Name.IsSpecified() && !c.Description.IsSpecified() && !c.Price.IsSpecified() &&
		!c.Stock.IsSpecified() && !c.Unit.IsSpecified() && !c.CategoryID.IsSpecified()
}

// Changes coerces the patch using the same rules as ProductInput.Fields.
func (p ProductPatch) Changes() (ProductChanges, error) {
	errs := inputErrors{}
	var c ProductChanges
	if p.Name.IsSpecified() {
		name := Normalize(p.Name.Value())
		if p.Name.IsNull() || name == "" {
			errs.add("name", "must be non-empty")
		} else {
			c.Name = Some(name)
		}
	}
	if p.Description.IsSpecified() {
		if d := optionalText(p.Description.Value()); p.Description.IsNull() || d == nil {
			c.Description = Null[string]()
		} else {
			c.Description = Some(*d)
		}
	}
	if p.Price.IsSpecified() {
		if p.Price.IsNull() {
			errs.add("price", "cannot be null")
		} else {
			c.Price = Some(parsePrice(p.Price.Value(), errs))
		}
	}
	if p.Stock.IsSpecified() {
		if p.Stock.IsNull() {
			errs.add("stock", "cannot be null")
		} else {
			c.Stock = Some(parseStock(p.Stock.Value(), errs))
		}
	}
	if p.Unit.IsSpecified() {
		unit := Normalize(p.Unit.Value())
		if p.Unit.IsNull() || unit == "" {
			unit = DefaultUnit
		}
		c.Unit = Some(unit)
	}
	if p.CategoryID.IsSpecified() {
		if id := optionalServerID(p.CategoryID.Value()); p.CategoryID.IsNull() || id == nil {
			c.CategoryID = Null[ServerID]()
		} else {
			c.CategoryID = Some(*id)
		}
	}
	if err := errs.err(); err != nil {
		return ProductChanges{}, err
	}
	return c, nil
}

// DiffProduct compares a full form submission against the current product and
// returns only the fields that differ.
func DiffProduct(current Product, in ProductInput) (ProductChanges, error) {
	f, err := in.Fields()
	if err != nil {
		return ProductChanges{}, err
	}
	var c ProductChanges
	if f.Name != current.Name {
		c.Name = Some(f.Name)
	}
	if !equalStringPtr(f.Description, current.Description) {
		if f.Description == nil {
			c.Description = Null[string]()
		} else {
			c.Description = Some(*f.Description)
		}
	}
	if !f.Price.Equal(current.Price) {
		c.Price = Some(f.Price)
	}
	if f.Stock != current.Stock {
		c.Stock = Some(f.Stock)
	}
	if f.Unit != current.Unit {
		c.Unit = Some(f.Unit)
	}
	if !equalServerIDPtr(f.CategoryID, current.CategoryID) {
		if f.CategoryID == nil {
			c.CategoryID = Null[ServerID]()
		} else {
			c.CategoryID = Some(*f.CategoryID)
		}
	}
	return c, nil
}

// WithChanges returns a copy of p with c applied. When the category changes the
// denormalized Category is cleared; callers resolve it separately.
func (p Product) WithChanges(c ProductChanges) Product {
	out := p.Clone()
	if c.Name.IsSpecified() {
		out.Name = c.Name.Value()
	}
	if c.Description.IsSpecified() {
		out.Description = c.Description.Ptr()
	}
	if c.Price.IsSpecified() {
		out.Price = c.Price.Value()
	}
	if c.Stock.IsSpecified() {
		out.Stock = c.Stock.Value()
	}
	if c.Unit.IsSpecified() {
		out.Unit = c.Unit.Value()
	}
	if c.CategoryID.IsSpecified() {
		out.CategoryID = c.CategoryID.Ptr()
		if out.CategoryID == nil || out.Category == nil || out.Category.ID != *out.CategoryID {
			out.Category = nil
		}
	}
	return out
}
