package cypher

import (
	"fmt"
	"strings"

	"boltgraph/internal/errs"
)

// ValidateIdentifier rejects anything that is not a safe Cypher identifier:
// labels, relationship types, and property keys are never parameterizable
// in Cypher, so they are the one place this package accepts raw strings
// into query text instead of routing them through the parameter registry.
// A caller-controlled label or type name is therefore validated against an
// allowlist pattern rather than escaped.
func ValidateIdentifier(name string) error {
	if name == "" {
		return errs.New(errs.Client, "cypher: identifier must not be empty")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return errs.New(errs.Client, fmt.Sprintf("cypher: identifier %q contains an illegal character", name))
		}
	}
	if strings.ContainsAny(name, "`\n\r") {
		return errs.New(errs.Client, fmt.Sprintf("cypher: identifier %q contains an illegal character", name))
	}
	return nil
}

// validatePatternIdentifiers checks every alias, label, and relationship
// type a pattern binds. Property keys (pattern property maps, Prop) are not
// checked here or anywhere else in the package.
func validatePatternIdentifiers(p Pattern) error {
	for alias, labels := range p.aliases() {
		if alias != "" {
			if err := ValidateIdentifier(alias); err != nil {
				return err
			}
		}
		for _, l := range labels {
			if err := ValidateIdentifier(l); err != nil {
				return err
			}
		}
	}
	return nil
}
