package coding

import "fmt"

// Code is a coding category. Codes form a forest through ParentID.
type Code struct {
	ID          string
	CodebookID  string
	ParentID    string // empty for root codes
	Name        string
	Color       string
	Description string
	Active      bool
}

// IsRoot reports whether the code has no parent.
func (c Code) IsRoot() bool {
	return c.ParentID == ""
}

// Codebook groups codes of a project. Active is a presentation flag.
type Codebook struct {
	ID        string
	ProjectID string
	Name      string
	Active    bool
}

func (c Code) validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: code id is empty", ErrInvalidOperation)
	}
	if c.ID == c.ParentID {
		return fmt.Errorf("%w: code %s cannot be its own parent", ErrInvalidOperation, c.ID)
	}
	return nil
}
