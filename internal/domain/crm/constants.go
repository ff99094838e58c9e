// Package crm holds the lead table, outbound email records, tracking events, the deal pipeline
// and inbound website contacts, plus the read models the dashboards consume.
package crm

// LeadStatus is the outreach state of a lead.
type LeadStatus string

const (
	StatusNotContacted LeadStatus = "Not Contacted"
	StatusEmail1Sent   LeadStatus = "Email 1 Sent"
	StatusEmail2Sent   LeadStatus = "Email 2 Sent"
	StatusEmail3Sent   LeadStatus = "Email 3 Sent"
	StatusEmail4Sent   LeadStatus = "Email 4 Sent"
	StatusReplied      LeadStatus = "Replied"
	StatusNotFit       LeadStatus = "Not Fit"
	StatusDoNotContact LeadStatus = "Do Not Contact"
)

// LeadStatuses lists every status in pipeline order.
var LeadStatuses = []LeadStatus{
	StatusNotContacted,
	StatusEmail1Sent,
	StatusEmail2Sent,
	StatusEmail3Sent,
	StatusEmail4Sent,
	StatusReplied,
	StatusNotFit,
	StatusDoNotContact,
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal statuses take a lead out of the outreach sequence.
func (s LeadStatus) Terminal() bool {
	return s == StatusReplied || s == StatusNotFit || s == StatusDoNotContact
}

// Template names one of the four outreach emails.
type Template string

const (
	TemplateEmail1 Template = "email1"
	TemplateEmail2 Template = "email2"
	TemplateEmail3 Template = "email3"
	TemplateEmail4 Template = "email4"
)

// Templates lists the outreach sequence in order.
var Templates = []Template{TemplateEmail1, TemplateEmail2, TemplateEmail3, TemplateEmail4}

// Valid reports whether t is one of the four templates.
func (t Template) Valid() bool {
	for _, known := range Templates {
		if t == known {
			return true
		}
	}
	return false
}

// SentStatus is the lead status recorded after t is sent.
func (t Template) SentStatus() (LeadStatus, bool) {
	switch t {
	case TemplateEmail1:
		return StatusEmail1Sent, true
	case TemplateEmail2:
		return StatusEmail2Sent, true
	case TemplateEmail3:
		return StatusEmail3Sent, true
	case TemplateEmail4:
		return StatusEmail4Sent, true
	}
	return "", false
}

// EventType is a tracking event kind.
type EventType string

const (
	EventOpen  EventType = "open"
	EventClick EventType = "click"
)

// DealStage is a pipeline column.
type DealStage string

const (
	StageDiscovery  DealStage = "Discovery"
	StageProposal   DealStage = "Proposal"
	StageClosedWon  DealStage = "Closed Won"
	StageClosedLost DealStage = "Closed Lost"
)

// DealStages lists the pipeline in board order.
var DealStages = []DealStage{StageDiscovery, StageProposal, StageClosedWon, StageClosedLost}

// Valid reports whether s is a known stage.
func (s DealStage) Valid() bool {
	for _, known := range DealStages {
		if s == known {
			return true
		}
	}
	return false
}

// Active stages count toward pipeline value.
func (s DealStage) Active() bool {
	return s == StageDiscovery || s == StageProposal
}

const (
	listLeadsLimit    = 500
	listContactsLimit = 200
	recentEmailsLimit = 8
	activityDays      = 90
	defaultSource     = "sersweai.com"
)
