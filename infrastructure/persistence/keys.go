// Package persistence keeps the courseware tree and the competency graph
// queryable in every direction. Each relationship is stored as several
// reciprocal views, and every mutation is issued as one fan-out batch that
// writes all of them. Nothing here is transactional: a failed batch can leave
// views that disagree, which the Verify and Repair operations detect and fix.
package persistence

import (
	"strings"
)

// Partition key prefixes, one per view family.
const (
	prefixElement          = "ELEMENT"
	prefixParent           = "PARENT"
	prefixChildren         = "CHILDREN"
	prefixChildrenOrder    = "CHILDREN_ORDER"
	prefixLinkedPathways   = "LINKED_PATHWAYS"
	prefixLinkedActivities = "LINKED_ACTIVITIES"
	prefixAssocOrigin      = "ASSOC_ORIGIN"
	prefixAssocDest        = "ASSOC_DEST"
	prefixAssocDoc         = "ASSOC_DOC"
	prefixScope            = "SCOPE"
	prefixScopeElement     = "SCOPE_ELEMENT"
	prefixTagElement       = "TAG_ELEMENT"
	prefixTagItem          = "TAG_ITEM"
	prefixTagDocument      = "TAG_DOC"
	prefixDocumentItems    = "DOC_ITEMS"
)

// Fixed sort keys for single-row partitions.
const (
	sortElement   = "ELEMENT"
	sortParent    = "PARENT"
	sortList      = "LIST"
	sortTombstone = "TOMBSTONE"
)

const keySeparator = "#"

func partition(prefix, id string) string {
	return prefix + keySeparator + id
}

// compound joins the parts of a sort key.
func compound(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// sortPrefix returns the prefix that selects sort keys starting with part,
// or "" when part is empty.
func sortPrefix(part string) string {
	if part == "" {
		return ""
	}
	return part + keySeparator
}
