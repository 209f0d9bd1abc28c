package service

import (
	"errors"
	"strings"
)

// ErrInvalidTransition indicates the requested event is not defined for the
// submission's current state. The caller should re-fetch and re-decide.
var ErrInvalidTransition = errors.New("invalid submission transition")

// ErrEmptyAssessment indicates the assessment has no questions to attempt.
var ErrEmptyAssessment = errors.New("assessment has no questions")

// ErrInconsistentCreator indicates the submission creator does not match the
// linked points-record owner.
var ErrInconsistentCreator = errors.New("submission creator does not match points record owner")

// ErrDuplicateSubmission indicates a live submission already exists for this
// assessment and creator. The caller should redirect to the existing one.
var ErrDuplicateSubmission = errors.New("submission already exists for this assessment")

// ErrSubmissionNotFound indicates a submission could not be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrAssessmentNotFound indicates the target assessment does not exist.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrQuestionNotFound indicates the question does not belong to the
// submission's assessment.
var ErrQuestionNotFound = errors.New("question not found in assessment")

// ErrTaskNotFound indicates no grading task exists for the given handle.
var ErrTaskNotFound = errors.New("grading task not found")

// ErrForbidden indicates the actor's role does not allow the operation.
var ErrForbidden = errors.New("forbidden")

// ValidationErrors aggregates creation-time validation failures so all of
// them reach the caller in one response.
type ValidationErrors struct {
	Issues []error
}

func (e *ValidationErrors) Error() string {
	messages := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		messages = append(messages, issue.Error())
	}
	return strings.Join(messages, "; ")
}

// Unwrap exposes the individual issues to errors.Is and errors.As.
func (e *ValidationErrors) Unwrap() []error {
	return e.Issues
}
