package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"

	"github.com/ijt/xylem/internal/types"
)

// preparedConstraint is a pre-parsed version constraint ready for
// repeated comparison.  For Debian it holds a parsed version; for PEP 440
// it holds a specifier set.
type preparedConstraint struct {
	op  types.ConstraintOp
	raw string
	deb debversion.Version
	pep pep440.Specifiers
}

// versionCache memoizes parsed version objects across the packages of one
// installer.
type versionCache struct {
	scheme types.VersionScheme
	deb    map[string]debversion.Version
	pep    map[string]pep440.Version
	spec   map[string]pep440.Specifiers
}

func newVersionCache(scheme types.VersionScheme) *versionCache {
	return &versionCache{
		scheme: scheme,
		deb:    map[string]debversion.Version{},
		pep:    map[string]pep440.Version{},
		spec:   map[string]pep440.Specifiers{},
	}
}

func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepVersion(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, err
	}
	c.pep[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepSpec(value string) (pep440.Specifiers, error) {
	if parsed, ok := c.spec[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.NewSpecifiers(value)
	if err != nil {
		return pep440.Specifiers{}, err
	}
	c.spec[value] = parsed
	return parsed, nil
}

// prepareConstraints parses each constraint's version string upfront.
func (c *versionCache) prepareConstraints(constraints []types.Constraint) ([]preparedConstraint, error) {
	var out []preparedConstraint
	for _, constraint := range constraints {
		if constraint.Op == types.ConstraintOpNone {
			continue
		}
		switch c.scheme {
		case types.VersionSchemeDeb:
			parsed, err := c.debVersion(constraint.Version)
			if err != nil {
				return nil, invalidVersion(constraint.Version, err)
			}
			out = append(out, preparedConstraint{op: constraint.Op, raw: constraint.Version, deb: parsed})
		case types.VersionSchemePEP440:
			spec, err := c.pepSpec(toPep440Spec(constraint))
			if err != nil {
				return nil, invalidVersion(constraint.Version, err)
			}
			out = append(out, preparedConstraint{op: constraint.Op, raw: constraint.Version, pep: spec})
		default:
			out = append(out, preparedConstraint{op: constraint.Op, raw: constraint.Version})
		}
	}
	return out, nil
}

// satisfies reports whether an installed version meets every constraint.
// An unknown installed version satisfies only an unconstrained package.
func (c *versionCache) satisfies(version string, constraints []types.Constraint) (bool, error) {
	prepared, err := c.prepareConstraints(constraints)
	if err != nil {
		return false, err
	}
	if len(prepared) == 0 {
		return true, nil
	}
	if version == "" {
		return false, nil
	}
	switch c.scheme {
	case types.VersionSchemeDeb:
		return c.satisfiesDeb(version, prepared)
	case types.VersionSchemePEP440:
		return c.satisfiesPep440(version, prepared)
	default:
		return satisfiesExact(version, prepared)
	}
}

func (c *versionCache) satisfiesDeb(version string, constraints []preparedConstraint) (bool, error) {
	v, err := c.debVersion(version)
	if err != nil {
		return false, invalidVersion(version, err)
	}
	for _, constraint := range constraints {
		cv := constraint.deb
		switch constraint.op {
		case types.ConstraintOpEq, types.ConstraintOpEq2:
			if !v.Equal(cv) {
				return false, nil
			}
		case types.ConstraintOpNe:
			if v.Equal(cv) {
				return false, nil
			}
		case types.ConstraintOpGte:
			if v.LessThan(cv) {
				return false, nil
			}
		case types.ConstraintOpLte:
			if v.GreaterThan(cv) {
				return false, nil
			}
		case types.ConstraintOpGt:
			if !v.GreaterThan(cv) {
				return false, nil
			}
		case types.ConstraintOpLt:
			if !v.LessThan(cv) {
				return false, nil
			}
		default:
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unsupported constraint operator %q", constraint.op))
		}
	}
	return true, nil
}

func (c *versionCache) satisfiesPep440(version string, constraints []preparedConstraint) (bool, error) {
	parsed, err := c.pepVersion(version)
	if err != nil {
		return false, invalidVersion(version, err)
	}
	for _, constraint := range constraints {
		if !constraint.pep.Check(parsed) {
			return false, nil
		}
	}
	return true, nil
}

func satisfiesExact(version string, constraints []preparedConstraint) (bool, error) {
	for _, constraint := range constraints {
		switch constraint.op {
		case types.ConstraintOpEq, types.ConstraintOpEq2:
			if version != constraint.raw {
				return false, nil
			}
		case types.ConstraintOpNe:
			if version == constraint.raw {
				return false, nil
			}
		default:
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("operator %q needs a version scheme", constraint.op))
		}
	}
	return true, nil
}

// toPep440Spec converts a constraint to a PEP 440 specifier string
// (e.g. ">= 1.0", "~= 2.3").
func toPep440Spec(constraint types.Constraint) string {
	op := string(constraint.Op)
	if constraint.Op == types.ConstraintOpEq {
		op = "=="
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", op, constraint.Version))
}

func invalidVersion(value string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid version %q", value)).
		WithCause(cause)
}
