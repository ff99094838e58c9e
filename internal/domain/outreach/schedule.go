package outreach

import (
	"time"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

const dateLayout = "2006-01-02"

// NextWeekday rolls a Saturday or Sunday forward to Monday (UTC calendar).
func NextWeekday(t time.Time) time.Time {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

// NextFollowUp returns the follow-up date (YYYY-MM-DD, UTC) for a send at now, or nil when the
// template has no follow-up for category.
func (c *Catalog) NextFollowUp(now time.Time, category string, template crm.Template) *string {
	d, ok := c.FollowUpDays(category, template)
	if !ok {
		return nil
	}
	day := NextWeekday(now.UTC().Add(time.Duration(d) * 24 * time.Hour)).Format(dateLayout)
	return &day
}

// NextBusinessDay8AM is 08:00 on the first calendar day after now, in loc, that is not a
// Saturday or Sunday. The offset is the zone's own for that date, so DST is handled.
func NextBusinessDay8AM(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	for {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			break
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, loc)
}

// NextAction is the follow-up calendar hint for a lead in status. Unmapped statuses are
// shown as themselves.
func NextAction(status crm.LeadStatus) string {
	switch status {
	case crm.StatusNotContacted:
		return "Send Email 1"
	case crm.StatusEmail1Sent:
		return "Send Email 2"
	case crm.StatusEmail2Sent:
		return "Send Email 3"
	case crm.StatusEmail3Sent, "":
		return "Follow up"
	}
	return string(status)
}
