package model

type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
)

type Step string

const (
	StepWelcome            Step = "welcome"
	StepCategorySelection  Step = "category_selection"
	StepCategoryDiscussion Step = "category_discussion"
	StepReflection         Step = "reflection"
	StepActionItems        Step = "action_items"
	StepCompletion         Step = "completion"
)

// Steps is the fixed ordered step list of a check-in.
var Steps = []Step{
	StepWelcome,
	StepCategorySelection,
	StepCategoryDiscussion,
	StepReflection,
	StepActionItems,
	StepCompletion,
}

func (s Step) Valid() bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

type NotePrivacy string

const (
	NotePrivacyPrivate NotePrivacy = "private"
	NotePrivacyShared  NotePrivacy = "shared"
	NotePrivacyDraft   NotePrivacy = "draft"
)

func (p NotePrivacy) Valid() bool {
	switch p {
	case NotePrivacyPrivate, NotePrivacyShared, NotePrivacyDraft:
		return true
	}
	return false
}
