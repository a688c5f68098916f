// Package dbformat converts between the reference model JSON representation
// and the compact aliased JSON stored in the data column of structure rows.
package dbformat

import (
	"fmt"
	"sync"
)

// Keys reserved in stored JSON objects.
const (
	TypeKey      = "T"
	MagnitudeKey = "M"
	RMTypeKey    = "_type"
)

var attributeAliases = map[string]string{
	"accuracy":                    "ac",
	"accuracy_is_percent":         "acp",
	"action_archetype_id":         "aai",
	"activities":                  "acs",
	"activity_id":                 "aci",
	"alternate_text":              "alt",
	"archetype_details":           "ad",
	"archetype_id":                "ai",
	"archetype_node_id":           "an",
	"assigner":                    "asg",
	"careflow_step":               "cfs",
	"category":                    "cat",
	"change_type":                 "cht",
	"charset":                     "chs",
	"code_string":                 "cs",
	"commit_audit":                "ca",
	"committer":                   "cmt",
	"composer":                    "cmp",
	"compositions":                "cms",
	"content":                     "c",
	"context":                     "cx",
	"contribution":                "cb",
	"current_state":               "cst",
	"data":                        "d",
	"defining_code":               "dc",
	"denominator":                 "den",
	"description":                 "des",
	"details":                     "dts",
	"directory":                   "dir",
	"duration":                    "du",
	"ehr_id":                      "eid",
	"ehr_status":                  "es",
	"encoding":                    "enc",
	"end_time":                    "et",
	"events":                      "ev",
	"expiry_time":                 "ext",
	"external_ref":                "er",
	"feeder_audit":                "fa",
	"feeder_system_audit":         "fsa",
	"feeder_system_item_ids":      "fsi",
	"folders":                     "fo",
	"formalism":                   "fm",
	"formatting":                  "fmt",
	"function":                    "fn",
	"guideline_id":                "gi",
	"health_care_facility":        "hcf",
	"hyperlink":                   "hl",
	"id":                          "i",
	"identifiers":                 "ids",
	"instruction_details":         "ind",
	"instruction_id":              "ini",
	"is_modifiable":               "ism",
	"is_queryable":                "isq",
	"is_terminal":                 "ist",
	"ism_transition":              "imt",
	"issuer":                      "isr",
	"item":                        "it",
	"items":                       "its",
	"language":                    "la",
	"lifecycle_state":             "lcs",
	"links":                       "lk",
	"location":                    "loc",
	"lower":                       "lo",
	"lower_included":              "loi",
	"lower_unbounded":             "lou",
	"magnitude":                   "m",
	"magnitude_status":            "ms",
	"mappings":                    "map",
	"match":                       "mat",
	"math_function":               "mf",
	"meaning":                     "mea",
	"media_type":                  "mt",
	"mode":                        "mo",
	"name":                        "n",
	"namespace":                   "ns",
	"narrative":                   "nar",
	"normal_range":                "nr",
	"normal_status":               "nst",
	"null_flavour":                "nf",
	"null_reason":                 "nre",
	"numerator":                   "num",
	"origin":                      "ori",
	"original_content":            "oc",
	"originating_system_audit":    "osa",
	"originating_system_item_ids": "osi",
	"other_context":               "oct",
	"other_details":               "od",
	"other_participations":        "op",
	"other_reference_ranges":      "orr",
	"participations":              "pa",
	"path":                        "p",
	"performer":                   "pf",
	"period":                      "pe",
	"precision":                   "pr",
	"preceding_version_uid":       "pvu",
	"preferred_term":              "pt",
	"property":                    "pro",
	"protocol":                    "pc",
	"provider":                    "pv",
	"purpose":                     "pu",
	"range":                       "rg",
	"reason":                      "rs",
	"relationship":                "rel",
	"rm_version":                  "rv",
	"rows":                        "ro",
	"sample_count":                "sc",
	"scheme":                      "sch",
	"setting":                     "se",
	"size":                        "sz",
	"start_time":                  "st",
	"state":                       "sta",
	"subject":                     "su",
	"summary":                     "sum",
	"symbol":                      "sy",
	"system_id":                   "sid",
	"target":                      "ta",
	"template_id":                 "ti",
	"terminology_id":              "tid",
	"territory":                   "ter",
	"time":                        "tm",
	"time_committed":              "tc",
	"time_created":                "tcr",
	"timing":                      "tmg",
	"transition":                  "tr",
	"type":                        "ty",
	"uid":                         "u",
	"units":                       "un",
	"units_display_name":          "udn",
	"units_system":                "us",
	"upper":                       "up",
	"upper_included":              "upi",
	"upper_unbounded":             "upu",
	"uri":                         "uri",
	"value":                       "v",
	"version_id":                  "vid",
	"wf_definition":               "wfd",
	"wf_details":                  "wd",
	"width":                       "w",
	"workflow_id":                 "wi",
}

var typeAliases = map[string]string{
	"ACTION":               "AN",
	"ACTIVITY":             "ACT",
	"ADMIN_ENTRY":          "AE",
	"ARCHETYPE_ID":         "AID",
	"ARCHETYPED":           "AD",
	"AUDIT_DETAILS":        "AUD",
	"CLUSTER":              "C",
	"CODE_PHRASE":          "CP",
	"COMPOSITION":          "CO",
	"DV_BOOLEAN":           "b",
	"DV_CODED_TEXT":        "ct",
	"DV_COUNT":             "co",
	"DV_DATE":              "d",
	"DV_DATE_TIME":         "dt",
	"DV_DURATION":          "du",
	"DV_EHR_URI":           "eu",
	"DV_IDENTIFIER":        "id",
	"DV_INTERVAL":          "iv",
	"DV_MULTIMEDIA":        "mm",
	"DV_ORDINAL":           "o",
	"DV_PARAGRAPH":         "pg",
	"DV_PARSABLE":          "pa",
	"DV_PROPORTION":        "p",
	"DV_QUANTITY":          "q",
	"DV_SCALE":             "sc",
	"DV_STATE":             "s",
	"DV_TEXT":              "x",
	"DV_TIME":              "tm",
	"DV_URI":               "u",
	"EHR":                  "EHR",
	"EHR_STATUS":           "ES",
	"ELEMENT":              "E",
	"EVALUATION":           "EV",
	"EVENT_CONTEXT":        "ECX",
	"FEEDER_AUDIT":         "FA",
	"FEEDER_AUDIT_DETAILS": "FAD",
	"FOLDER":               "F",
	"GENERIC_ENTRY":        "GE",
	"GENERIC_ID":           "GX",
	"HIER_OBJECT_ID":       "HX",
	"HISTORY":              "HI",
	"INSTRUCTION":          "IN",
	"INSTRUCTION_DETAILS":  "ID",
	"INTERVAL_EVENT":       "IE",
	"ISM_TRANSITION":       "IT",
	"ITEM_LIST":            "IL",
	"ITEM_SINGLE":          "IS",
	"ITEM_TABLE":           "TA",
	"ITEM_TREE":            "TR",
	"LINK":                 "LK",
	"LOCATABLE_REF":        "LR",
	"OBJECT_REF":           "OR",
	"OBJECT_VERSION_ID":    "OV",
	"OBSERVATION":          "OB",
	"ORIGINAL_VERSION":     "OVN",
	"PARTICIPATION":        "PA",
	"PARTY_IDENTIFIED":     "PI",
	"PARTY_REF":            "PR",
	"PARTY_RELATED":        "PRL",
	"PARTY_SELF":           "PS",
	"POINT_EVENT":          "PE",
	"REFERENCE_RANGE":      "RR",
	"SECTION":              "SE",
	"TEMPLATE_ID":          "TID",
	"TERM_MAPPING":         "TM",
	"TERMINOLOGY_ID":       "TRI",
}

var (
	reverseOnce       sync.Once
	attributesByAlias map[string]string
	typesByAlias      map[string]string
)

func reverse() {
	reverseOnce.Do(func() {
		attributesByAlias = invert(attributeAliases)
		typesByAlias = invert(typeAliases)
	})
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if _, ok := out[v]; ok {
			panic(fmt.Sprintf("dbformat: duplicate alias %s", v))
		}
		out[v] = k
	}
	return out
}

// AttributeAlias returns the stored key of an RM attribute.
func AttributeAlias(name string) (string, error) {
	if a, ok := attributeAliases[name]; ok {
		return a, nil
	}
	return "", fmt.Errorf("dbformat: no alias for attribute %s", name)
}

// AttributeFromAlias returns the RM attribute stored under alias.
func AttributeFromAlias(alias string) (string, error) {
	reverse()
	if n, ok := attributesByAlias[alias]; ok {
		return n, nil
	}
	return "", fmt.Errorf("dbformat: unknown attribute alias %s", alias)
}

// TypeAlias returns the stored name of an RM type.
func TypeAlias(name string) (string, error) {
	if a, ok := typeAliases[name]; ok {
		return a, nil
	}
	return "", fmt.Errorf("dbformat: no alias for type %s", name)
}

// TypeFromAlias returns the RM type stored under alias.
func TypeFromAlias(alias string) (string, error) {
	reverse()
	if n, ok := typesByAlias[alias]; ok {
		return n, nil
	}
	return "", fmt.Errorf("dbformat: unknown type alias %s", alias)
}

// MustAttributeAlias is AttributeAlias for names known to the catalog.
func MustAttributeAlias(name string) string {
	a, err := AttributeAlias(name)
	if err != nil {
		panic(err)
	}
	return a
}

// MustTypeAlias is TypeAlias for names known to the catalog.
func MustTypeAlias(name string) string {
	a, err := TypeAlias(name)
	if err != nil {
		panic(err)
	}
	return a
}
