package domain

import "github.com/shopspring/decimal"

// UpdateCommand is one sparse change to a shoe. The set of variants is closed.
type UpdateCommand interface {
	Apply(*Shoe)
	updateCommand()
}

type SetName struct{ Name string }
type SetBrand struct{ Brand string }
type SetCategory struct{ Category string }
type SetDescription struct{ Description string }
type SetPrice struct{ Price decimal.Decimal }

// SetDiscountPrice clears the discount when Price is nil.
type SetDiscountPrice struct{ Price *decimal.Decimal }

type SetSizes struct{ Sizes []SizeStock }

// SetImage points the shoe at a new stored image. URL is the resolved public
// address and is filled in by the caller before Apply.
type SetImage struct {
	ImageID string
	URL     string
}

func (c SetName) Apply(s *Shoe)        { s.Name = c.Name }
func (c SetBrand) Apply(s *Shoe)       { s.Brand = c.Brand }
func (c SetCategory) Apply(s *Shoe)    { s.Category = c.Category }
func (c SetDescription) Apply(s *Shoe) { s.Description = c.Description }
func (c SetPrice) Apply(s *Shoe)       { s.Price = c.Price }
func (c SetSizes) Apply(s *Shoe)       { s.Sizes = CloneSizes(c.Sizes) }

func (c SetDiscountPrice) Apply(s *Shoe) {
	if c.Price == nil {
		s.DiscountPrice = nil
		return
	}
	p := *c.Price
	s.DiscountPrice = &p
}

func (c SetImage) Apply(s *Shoe) {
	s.ImageID = c.ImageID
	s.DefaultImage = c.URL
}

func (SetName) updateCommand()          {}
func (SetBrand) updateCommand()         {}
func (SetCategory) updateCommand()      {}
func (SetDescription) updateCommand()   {}
func (SetPrice) updateCommand()         {}
func (SetDiscountPrice) updateCommand() {}
func (SetSizes) updateCommand()         {}
func (SetImage) updateCommand()         {}
