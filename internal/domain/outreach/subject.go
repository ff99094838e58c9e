package outreach

import (
	"hash/fnv"
	"strings"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

var subjectVariants = map[crm.Template][]string{
	crm.TemplateEmail1: {"Quick idea for {firm}", "Saving {firm} 10 hrs/week"},
	crm.TemplateEmail2: {"2 automations that could help {firm}", "How {category} firms cut admin time in half"},
	crm.TemplateEmail3: {"Closing the loop — {firm}"},
	crm.TemplateEmail4: {"Still happy to help — {firm}"},
}

// SelectSubject picks the A/B subject for a lead. The index is the FNV-32a hash of the lead id
// modulo the number of variants, so a lead always gets the same line. Ids are time-ordered and
// share their leading bytes, so the whole id is hashed. The variant label is "A", "B", ... and
// empty when only one subject exists.
func SelectSubject(template crm.Template, leadID, firm, category string) (subject, variant string) {
	variants, ok := subjectVariants[template]
	if !ok {
		variants = subjectVariants[crm.TemplateEmail1]
	}
	idx := variantIndex(leadID, len(variants))
	subject = strings.NewReplacer("{firm}", firm, "{category}", category).Replace(variants[idx])
	if len(variants) > 1 {
		variant = string(rune('A' + idx))
	}
	return subject, variant
}

func variantIndex(leadID string, n int) int {
	if leadID == "" || n < 2 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(leadID)) //nolint:errcheck
	return int(h.Sum32() % uint32(n))
}
