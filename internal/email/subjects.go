package email

const (
	subjectVisitScheduledFmt = "%s scheduled: %s"
	subjectVisitCancelledFmt = "%s cancelled: %s"
	subjectCrewReminderFmt   = "Reminder: %s visit on %s"
)
