package models

// LearningSettings is the user-scoped preference singleton. One row per
// replica; it syncs like any other table so preferences follow the user
// across devices.
type LearningSettings struct {
	ID                  string
	Algorithm           string
	NewWordsPerDay      int64
	DailyReviewLimit    int64
	AutoAdvanceSeconds  int64
	ShowFailedInSession bool
	ReminderEnabled     bool
	ReminderTime        string

	SyncEnvelope
}
