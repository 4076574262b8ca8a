package core

type Package struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Title      string `db:"title" json:"title"`
	State      State  `db:"state" json:"state"`
	TsCreated  int64  `db:"ts_created" json:"created"`
	RevisionID int64  `db:"revision_id" json:"revision_id"`
}

var packageFields = []string{"name", "title"}

func (p *Package) IsActive() bool {
	return p.State == Active
}

func (p *Package) DisplayName() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

func (p *Package) ObjectType() ObjectType {
	return PackageObject
}

func (p *Package) ObjectID() string {
	return p.ID
}

// PackageDB stores packages. InsertPackage must store the package, the owner grant and the revision in one transaction.
type PackageDB interface {
	GetPackage(id string) (*Package, error)
	GetPackageByName(name string) (*Package, error)
	InsertPackage(p *Package, owner *RoleGrant, rev *Revision) error
	SearchPackages(prefix string, limit int) ([]*Package, error) // active packages whose name or title starts with prefix
}

func (p *Package) apply(attrs Attrs) {
	if name, ok := attrs["name"]; ok {
		p.Name = NormalizeName(name)
	}
	if title, ok := attrs["title"]; ok {
		p.Title = title
	}
}

func (p *Package) validate() *validation {
	var v = &validation{}
	validateName(v, p.Name)
	if len(p.Title) > 255 {
		v.add("title", "Title is too long")
	}
	return v
}
