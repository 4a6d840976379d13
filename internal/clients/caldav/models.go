package caldav

// Calendar is a calendar collection on the server
type Calendar struct {
	Path        string
	Name        string // display name
	Description string
}

// String returns the display name, or the collection path when the server
// reports none.
func (c Calendar) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}
