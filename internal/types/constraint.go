package types

// Constraint is a version requirement attached to a package identifier,
// e.g. "libfoo (>= 1.2)" or "numpy>=1.26".
type Constraint struct {
	Name    string
	Op      ConstraintOp
	Version string
}

// PackageSpec is a package identifier split into name and constraints.
type PackageSpec struct {
	Name        string
	Constraints []Constraint
}

type VersionScheme string

const (
	VersionSchemeDeb    VersionScheme = "deb"
	VersionSchemePEP440 VersionScheme = "pep440"
	// VersionSchemeNone compares versions for equality only.
	VersionSchemeNone VersionScheme = ""
)

type ConstraintOp string

const (
	ConstraintOpNone   ConstraintOp = ""
	ConstraintOpEq     ConstraintOp = "="
	ConstraintOpEq2    ConstraintOp = "=="
	ConstraintOpNe     ConstraintOp = "!="
	ConstraintOpCompat ConstraintOp = "~="
	ConstraintOpGte    ConstraintOp = ">="
	ConstraintOpLte    ConstraintOp = "<="
	ConstraintOpGt     ConstraintOp = ">"
	ConstraintOpLt     ConstraintOp = "<"
)
