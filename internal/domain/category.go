package domain

import "time"

// Category groups products. ProductCount is computed by the server.
type Category struct {
	ID      EntityID
	OwnerID OwnerID

	Name        string
	Description *string

	ProductCount int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Updating is a transient UI marker set while an update is in flight.
	Updating bool
}

func (c Category) Clone() Category {
	out := c
	out.Description = cloneStringPtr(c.Description)
	return out
}

// Ref returns the denormalized reference carried on products, if c is confirmed.
func (c Category) Ref() (CategoryRef, bool) {
	id, ok := c.ID.(ServerID)
	if !ok {
		return CategoryRef{}, false
	}
	return CategoryRef{ID: id, Name: c.Name}, true
}

type CategoryInput struct {
	Name        string
	Description string
}

type CategoryFields struct {
	Name        string
	Description *string
}

func (in CategoryInput) Fields() (CategoryFields, error) {
	errs := inputErrors{}
	f := CategoryFields{
		Name:        Normalize(in.Name),
		Description: optionalText(in.Description),
	}
	if f.Name == "" {
		errs.add("name", "must be non-empty")
	}
	if err := errs.err(); err != nil {
		return CategoryFields{}, err
	}
	return f, nil
}

type CategoryPatch struct {
	Name        Optional[string]
	Description Optional[string]
}

type CategoryChanges struct {
	Name        Optional[string]
	Description Optional[string]
}

func (c CategoryChanges) IsEmpty() bool {
	return !c.Name.IsSpecified() && !c.Description.IsSpecified()
}

func (p CategoryPatch) Changes() (CategoryChanges, error) {
	errs := inputErrors{}
	var c CategoryChanges
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
	if err := errs.err(); err != nil {
		return CategoryChanges{}, err
	}
	return c, nil
}

func DiffCategory(current Category, in CategoryInput) (CategoryChanges, error) {
	f, err := in.Fields()
	if err != nil {
		return CategoryChanges{}, err
	}
	var c CategoryChanges
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
	return c, nil
}

func (c Category) WithChanges(ch CategoryChanges) Category {
	out := c.Clone()
	if ch.Name.IsSpecified() {
		out.Name = ch.Name.Value()
	}
	if ch.Description.IsSpecified() {
		out.Description = ch.Description.Ptr()
	}
	return out
}
