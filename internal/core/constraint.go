package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ijt/xylem/internal/types"
)

// opTokens is the ordered list of constraint operators tried during
// parsing.  Longer tokens must precede shorter ones (">=" before ">").
var opTokens = []types.ConstraintOp{
	types.ConstraintOpGte,
	types.ConstraintOpLte,
	types.ConstraintOpCompat,
	types.ConstraintOpNe,
	types.ConstraintOpEq2,
	types.ConstraintOpEq,
	types.ConstraintOpGt,
	types.ConstraintOpLt,
}

// debOps maps the strict Debian relations onto the generic operators.
var debOps = map[string]types.ConstraintOp{
	">>": types.ConstraintOpGt,
	"<<": types.ConstraintOpLt,
}

// ParseConstraint splits a raw "name>=version" string into a Constraint.
// When no operator is found the constraint is a bare name with
// ConstraintOpNone.
func ParseConstraint(raw string) (types.Constraint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Constraint{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty constraint")
	}
	for _, op := range opTokens {
		if strings.Contains(raw, string(op)) {
			parts := strings.SplitN(raw, string(op), 2)
			name := strings.TrimSpace(parts[0])
			version := strings.TrimSpace(parts[1])
			if name == "" || version == "" {
				return types.Constraint{}, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("invalid constraint: %s", raw))
			}
			return types.Constraint{Name: name, Op: op, Version: version}, nil
		}
	}
	return types.Constraint{Name: raw, Op: types.ConstraintOpNone}, nil
}

// ParsePackageSpec splits a package identifier into its name and version
// constraints.  Debian identifiers use "name (op version)" with several
// relations separated by commas; PEP 440 identifiers use
// "name>=1.0,<2".  Without a scheme the identifier is taken as a bare
// name unless it holds an equality pin.
func ParsePackageSpec(raw string, scheme types.VersionScheme) (types.PackageSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.PackageSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty package identifier")
	}
	switch scheme {
	case types.VersionSchemeDeb:
		return parseDebSpec(raw)
	case types.VersionSchemePEP440:
		return parsePepSpec(raw)
	default:
		if strings.ContainsAny(raw, "<>!~") || !strings.Contains(raw, "=") {
			return types.PackageSpec{Name: raw}, nil
		}
		return parsePepSpec(raw)
	}
}

func parseDebSpec(raw string) (types.PackageSpec, error) {
	open := strings.Index(raw, "(")
	if open < 0 {
		return types.PackageSpec{Name: raw}, nil
	}
	name := strings.TrimSpace(raw[:open])
	if name == "" || !strings.HasSuffix(raw, ")") {
		return types.PackageSpec{}, invalidSpec(raw)
	}
	spec := types.PackageSpec{Name: name}
	for _, relation := range strings.Split(raw[open+1:len(raw)-1], ",") {
		relation = strings.TrimSpace(relation)
		constraint, err := parseDebRelation(name, relation)
		if err != nil {
			return types.PackageSpec{}, invalidSpec(raw)
		}
		spec.Constraints = append(spec.Constraints, constraint)
	}
	return spec, nil
}

func parseDebRelation(name string, relation string) (types.Constraint, error) {
	for token, op := range debOps {
		if strings.HasPrefix(relation, token) {
			version := strings.TrimSpace(strings.TrimPrefix(relation, token))
			if version == "" {
				return types.Constraint{}, invalidSpec(relation)
			}
			return types.Constraint{Name: name, Op: op, Version: version}, nil
		}
	}
	constraint, err := ParseConstraint(name + relation)
	if err != nil {
		return types.Constraint{}, err
	}
	if constraint.Op == types.ConstraintOpNone || constraint.Name != name {
		return types.Constraint{}, invalidSpec(relation)
	}
	return constraint, nil
}

func parsePepSpec(raw string) (types.PackageSpec, error) {
	idx := strings.IndexAny(raw, "<>=!~")
	if idx < 0 {
		return types.PackageSpec{Name: raw}, nil
	}
	name := strings.TrimSpace(raw[:idx])
	if name == "" {
		return types.PackageSpec{}, invalidSpec(raw)
	}
	spec := types.PackageSpec{Name: name}
	for _, clause := range strings.Split(raw[idx:], ",") {
		constraint, err := ParseConstraint(name + strings.TrimSpace(clause))
		if err != nil {
			return types.PackageSpec{}, invalidSpec(raw)
		}
		if constraint.Op == types.ConstraintOpNone || constraint.Name != name {
			return types.PackageSpec{}, invalidSpec(raw)
		}
		spec.Constraints = append(spec.Constraints, constraint)
	}
	return spec, nil
}

// installArgument renders a parsed identifier the way the package manager
// expects it on the command line.
func installArgument(raw string, spec types.PackageSpec, scheme types.VersionScheme) string {
	switch scheme {
	case types.VersionSchemeDeb:
		if len(spec.Constraints) == 1 {
			op := spec.Constraints[0].Op
			if op == types.ConstraintOpEq || op == types.ConstraintOpEq2 {
				return spec.Name + "=" + spec.Constraints[0].Version
			}
		}
		return spec.Name
	default:
		return raw
	}
}

func invalidSpec(raw string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid package identifier: %s", raw))
}
