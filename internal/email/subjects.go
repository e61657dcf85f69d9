package email

const subjectInterventionReminderFmt = "Rappel : intervention %s le %s"
