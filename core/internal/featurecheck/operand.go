package featurecheck

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

func operandPrimitive(o aql.Operand) (*aql.Primitive, *errs.Error) {
	switch v := o.(type) {
	case *aql.Parameter:
		return nil, errs.Invalid("unresolved parameter $%s", v.Name)
	case *aql.Primitive:
		if v.Type == aql.PrimNull {
			return nil, errs.Unsupported("NULL is not supported")
		}
		return v, nil
	}
	return nil, errs.Unsupported("unsupported operand %s", aql.RenderOperand(o))
}

func (cc *clauseChecker) checkOperand(pt *pathanalysis.PathTypes, op aql.ComparisonOp, p *aql.Primitive) *errs.Error {
	ec := pt.Extracted
	if ec == nil {
		return nil
	}
	eqOnly := func() *errs.Error {
		if op != aql.OpEQ && op != aql.OpNEQ {
			return errs.Unsupported("%s only supports = and !=", ec.PathString())
		}
		return nil
	}
	str := func() (string, *errs.Error) {
		s, ok := p.Str()
		if !ok {
			return "", errs.Invalid("%s must be compared with a string", ec.PathString())
		}
		return s, nil
	}

	switch ec.Kind {
	case rm.ExtractedArchetypeNodeID:
		if err := eqOnly(); err != nil {
			return err
		}
		s, err := str()
		if err != nil {
			return err
		}
		if !rm.IsArchetypeID(s) && !rm.IsNodeID(s) {
			return errs.Invalid("invalid archetype_node_id '%s'", s)
		}

	case rm.ExtractedTemplateID:
		if err := eqOnly(); err != nil {
			return err
		}
		if _, err := str(); err != nil {
			return err
		}

	case rm.ExtractedVOID, rm.ExtractedEhrID, rm.ExtractedContributionID:
		if err := eqOnly(); err != nil {
			return err
		}
		s, err := str()
		if err != nil {
			return err
		}
		return cc.validateUID(s, ec.Kind == rm.ExtractedVOID)

	case rm.ExtractedAuditCommitter:
		return errs.Unsupported("conditions on %s are not supported", ec.PathString())

	default:
		if _, err := str(); err != nil {
			return err
		}
	}
	return nil
}

func (cc *clauseChecker) checkExtractedLike(ec *rm.ExtractedColumn, pattern string) *errs.Error {
	if !ec.Like {
		return errs.Unsupported("LIKE is not supported on %s", ec.PathString())
	}
	if ec.Kind != rm.ExtractedArchetypeNodeID {
		return nil
	}
	typ, _, ok := rm.ArchetypePrefixType(pattern)
	if !ok {
		return errs.Unsupported("LIKE on archetype_node_id requires a pattern starting with openEHR-EHR-<RM type>.")
	}
	if _, ok := cc.cat.Lookup(typ); !ok {
		return errs.Invalid("unknown RM type %s", typ)
	}
	return nil
}

// validateUID checks uuid[::system::version] operands. The system must be
// empty or the configured one.
func (c *Checker) validateUID(s string, versioned bool) *errs.Error {
	v, err := rm.ParseVersionedObjectID(s)
	if err != nil {
		return errs.Invalid("%s", err.Error())
	}
	if !v.HasVersion {
		return nil
	}
	if !versioned {
		return errs.Invalid("expected a uuid, got '%s'", s)
	}
	if v.System != "" && v.System != c.systemID {
		return errs.Invalid("unknown system id '%s'", v.System)
	}
	return nil
}
