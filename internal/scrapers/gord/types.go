package gord

type Category struct {
	Label string
	Items []string
}

// Meta describes the catalog as a whole, read from its first page.
type Meta struct {
	Categories []Category
	Pages      int
}

type Media struct {
	Ref  string
	Type string
	Date string
}

// Shoot is one listing of the catalog. Page is zero based, Item is the listing's position on its page.
type Shoot struct {
	Page        int
	Item        int
	Title       string
	Ref         string
	Description string
	Media       []Media
	Facets      []string
}

type Quality struct {
	Name string
	Size string
	Ref  string
}

type Video struct {
	Name      string
	Default   string
	Qualities []Quality
}
