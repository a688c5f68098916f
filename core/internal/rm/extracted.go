package rm

import "strings"

// ExtractedKind identifies a value stored outside the JSON data of a row.
type ExtractedKind int

const (
	ExtractedNameValue ExtractedKind = iota + 1
	ExtractedArchetypeNodeID
	ExtractedVOID
	ExtractedTemplateID
	ExtractedEhrID
	ExtractedEhrTimeCreated
	ExtractedEhrSystemID
	ExtractedCommitTime
	ExtractedContributionID
	ExtractedAuditSystemID
	ExtractedAuditDescription
	ExtractedAuditCommitter
	ExtractedChangeTypeValue
	ExtractedChangeTypeCode
	ExtractedChangeTypeTerminology
)

// ExtractedColumn maps an attribute path on some RM types to physical columns.
type ExtractedColumn struct {
	Kind ExtractedKind
	Path []string

	// AllowedTypes are the concrete owner types the path applies to.
	AllowedTypes []string
	// TargetTypes are the RM types the path resolves to.
	TargetTypes []string
	// Columns are the physical columns backing the value; empty for constants.
	Columns []string

	// VersionOnly columns live in the version table or the audit.
	VersionOnly bool
	Audit       bool
	Constant    bool

	OrderBy   bool
	Like      bool
	UIDShaped bool

	// Aggregatable columns may be counted even when they do not resolve to a
	// primitive.
	Aggregatable bool
}

// PathString joins the attribute names with '/'.
func (ec *ExtractedColumn) PathString() string {
	return strings.Join(ec.Path, "/")
}

func (ec *ExtractedColumn) AppliesTo(t string) bool {
	for _, a := range ec.AllowedTypes {
		if a == "*" || a == t {
			return true
		}
	}
	return false
}

var versionedRoots = []string{"COMPOSITION", "EHR_STATUS", "FOLDER"}

var extractedColumns = []*ExtractedColumn{
	{
		Kind:         ExtractedNameValue,
		Path:         []string{"name", "value"},
		AllowedTypes: []string{"*"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"entity_name"},
		OrderBy:      true,
		Like:         true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedArchetypeNodeID,
		Path:         []string{"archetype_node_id"},
		AllowedTypes: []string{"*"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"rm_entity", "entity_concept"},
		OrderBy:      true,
		Like:         true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedVOID,
		Path:         []string{"uid", "value"},
		AllowedTypes: append([]string{"ORIGINAL_VERSION"}, versionedRoots...),
		TargetTypes:  []string{"String"},
		Columns:      []string{"vo_id", "sys_version"},
		VersionOnly:  true,
		OrderBy:      true,
		UIDShaped:    true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedTemplateID,
		Path:         []string{"archetype_details", "template_id", "value"},
		AllowedTypes: []string{"COMPOSITION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"template_id"},
		VersionOnly:  true,
		OrderBy:      true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedEhrID,
		Path:         []string{"ehr_id", "value"},
		AllowedTypes: []string{"EHR"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"id"},
		OrderBy:      true,
		UIDShaped:    true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedEhrTimeCreated,
		Path:         []string{"time_created", "value"},
		AllowedTypes: []string{"EHR"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"creation_date"},
		OrderBy:      true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedEhrSystemID,
		Path:         []string{"system_id", "value"},
		AllowedTypes: []string{"EHR"},
		TargetTypes:  []string{"String"},
		Constant:     true,
	},
	{
		Kind:         ExtractedCommitTime,
		Path:         []string{"commit_audit", "time_committed", "value"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"sys_period_lower"},
		VersionOnly:  true,
		OrderBy:      true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedContributionID,
		Path:         []string{"contribution", "id", "value"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"contribution_id"},
		VersionOnly:  true,
		OrderBy:      true,
		UIDShaped:    true,
		Aggregatable: true,
	},
	{
		Kind:         ExtractedAuditSystemID,
		Path:         []string{"commit_audit", "system_id"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		VersionOnly:  true,
		Constant:     true,
	},
	{
		Kind:         ExtractedAuditDescription,
		Path:         []string{"commit_audit", "description", "value"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"description"},
		VersionOnly:  true,
		Audit:        true,
		OrderBy:      true,
		Like:         true,
	},
	{
		Kind:         ExtractedAuditCommitter,
		Path:         []string{"commit_audit", "committer"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"PARTY_IDENTIFIED", "PARTY_RELATED", "PARTY_SELF"},
		Columns:      []string{"committer"},
		VersionOnly:  true,
		Audit:        true,
	},
	{
		Kind:         ExtractedChangeTypeValue,
		Path:         []string{"commit_audit", "change_type", "value"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"change_type"},
		VersionOnly:  true,
		Audit:        true,
		OrderBy:      true,
		Like:         true,
	},
	{
		Kind:         ExtractedChangeTypeCode,
		Path:         []string{"commit_audit", "change_type", "defining_code", "code_string"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		Columns:      []string{"change_type"},
		VersionOnly:  true,
		Audit:        true,
		OrderBy:      true,
	},
	{
		Kind:         ExtractedChangeTypeTerminology,
		Path:         []string{"commit_audit", "change_type", "defining_code", "terminology_id", "value"},
		AllowedTypes: []string{"ORIGINAL_VERSION"},
		TargetTypes:  []string{"String"},
		VersionOnly:  true,
		Constant:     true,
	},
}

// ExtractedColumns returns the known extracted columns.
func ExtractedColumns() []*ExtractedColumn {
	return extractedColumns
}

// FindExtractedColumn returns the column whose path equals attrs and which
// applies to at least one of owners.
func FindExtractedColumn(owners TypeSet, attrs []string) (*ExtractedColumn, bool) {
	for _, ec := range extractedColumns {
		if len(ec.Path) != len(attrs) {
			continue
		}
		match := true
		for i := range attrs {
			if ec.Path[i] != attrs[i] {
				match = false
				break
			}
		}
		if match && owners.Any(ec.AppliesTo) {
			return ec, true
		}
	}
	return nil, false
}

// ChangeTypeCodes maps openEHR audit change types to their terminology codes.
var ChangeTypeCodes = map[string]string{
	"creation":     "249",
	"amendment":    "250",
	"modification": "251",
	"synthesis":    "252",
	"unknown":      "253",
	"deleted":      "523",
	"attestation":  "666",
}

// ExtractedColumnOf returns the column of kind k.
func ExtractedColumnOf(k ExtractedKind) *ExtractedColumn {
	for _, ec := range extractedColumns {
		if ec.Kind == k {
			return ec
		}
	}
	return nil
}
