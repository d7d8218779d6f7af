// Package sel selects the collections of a database that take part in a copy.
package sel

import (
	"path"

	"github.com/percona/percona-collection-migrator/errors"
)

// CollectionFilter returns true if a collection is allowed.
type CollectionFilter func(coll string) bool

func AllowAllFilter(string) bool {
	return true
}

// MakeCollectionFilter builds a filter from include and exclude lists. Entries
// are collection names or shell patterns ("audit_*"). Exclusion takes
// precedence; a non-empty include list denies everything it does not match.
func MakeCollectionFilter(include, exclude []string) (CollectionFilter, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return AllowAllFilter, nil
	}

	includes, err := compile(include)
	if err != nil {
		return nil, errors.Wrap(err, "include")
	}

	excludes, err := compile(exclude)
	if err != nil {
		return nil, errors.Wrap(err, "exclude")
	}

	return func(coll string) bool {
		if excludes.match(coll) {
			return false
		}

		if len(includes) > 0 {
			return includes.match(coll)
		}

		return true
	}, nil
}

// Apply returns the names allowed by f, keeping their order.
func Apply(names []string, f CollectionFilter) []string {
	rv := make([]string, 0, len(names))
	for _, name := range names {
		if f(name) {
			rv = append(rv, name)
		}
	}

	return rv
}

type patterns []string

func (p patterns) match(coll string) bool {
	for _, pattern := range p {
		ok, _ := path.Match(pattern, coll) // patterns are validated by compile
		if ok {
			return true
		}
	}

	return false
}

func compile(list []string) (patterns, error) {
	rv := make(patterns, 0, len(list))

	for _, pattern := range list {
		if pattern == "" {
			continue
		}

		_, err := path.Match(pattern, "")
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", pattern)
		}

		rv = append(rv, pattern)
	}

	return rv, nil
}
