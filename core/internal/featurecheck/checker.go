// Package featurecheck rejects AQL constructs the compiler does not support
// before any plan is built. Checks fail fast on the first violation.
package featurecheck

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

type Checker struct {
	cat *rm.Catalog

	// systemID is the creating system accepted in versioned object ids.
	systemID string
}

func New(cat *rm.Catalog, systemID string) *Checker {
	return &Checker{cat: cat, systemID: systemID}
}

// EnsureQuerySupported runs all checks on q.
func (c *Checker) EnsureQuerySupported(q *aql.Query) error {
	_, err := c.Check(q)
	return err
}

// Check runs the FROM, SELECT, WHERE and ORDER BY checks in that order and
// returns the type analysis of all paths of q.
func (c *Checker) Check(q *aql.Query) (_ *pathanalysis.QueryTypes, err error) {
	defer errs.Recover(&err)

	if err := c.checkFrom(q); err != nil {
		return nil, err
	}

	qt, err := pathanalysis.AnalyzeQuery(c.cat, q)
	if err != nil {
		return nil, err
	}
	if err := c.checkContainmentNesting(qt.Containments); err != nil {
		return nil, err
	}

	cc := &clauseChecker{Checker: c, q: q, qt: qt}
	for _, fn := range []func() error{cc.checkSelect, cc.checkWhere, cc.checkOrderBy, cc.checkPaging} {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return qt, nil
}

type clauseChecker struct {
	*Checker
	q  *aql.Query
	qt *pathanalysis.QueryTypes
}
