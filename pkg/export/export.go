// Package export renders a personal-data archive into the downloadable
// formats offered by the account export endpoint.
package export

// Field is one labelled value inside a section.
type Field struct {
	Name  string
	Value string
}

// Section groups related fields, e.g. the account record or one session.
type Section struct {
	Title  string
	Fields []Field
}

// Archive is the complete personal-data bundle for one account.
type Archive struct {
	Title    string
	Sections []Section
}
