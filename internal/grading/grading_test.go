package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

func TestForKindUnknown(t *testing.T) {
	_, err := ForKind("essay")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestGraderForManualKind(t *testing.T) {
	question := models.Question{ID: 1, Kind: KindFileUpload}
	_, err := GraderFor(question)
	require.ErrorIs(t, err, ErrGradingNotSupported)
}

func TestMultipleChoiceExactMatch(t *testing.T) {
	question := models.Question{
		ID:       1,
		Kind:     KindMultipleChoice,
		MaxGrade: 4,
		Options:  datatypes.JSON(`{"choices":["a","b","c"],"correct":[0,2]}`),
	}

	grader, err := GraderFor(question)
	require.NoError(t, err)

	grade, err := grader.Grade(question, models.Answer{Payload: datatypes.JSON(`{"selected":[2,0]}`)})
	require.NoError(t, err)
	require.InDelta(t, 4.0, grade, 1e-9)

	grade, err = grader.Grade(question, models.Answer{Payload: datatypes.JSON(`{"selected":[0]}`)})
	require.NoError(t, err)
	require.Zero(t, grade)

	// Duplicated picks must not pass for a larger correct set.
	grade, err = grader.Grade(question, models.Answer{Payload: datatypes.JSON(`{"selected":[0,0]}`)})
	require.NoError(t, err)
	require.Zero(t, grade)
}

func TestTextResponseKeywordShare(t *testing.T) {
	question := models.Question{
		ID:       2,
		Kind:     KindTextResponse,
		MaxGrade: 10,
		Options:  datatypes.JSON(`{"keywords":["goroutine","channel"],"case_sensitive":false}`),
	}

	grader, err := GraderFor(question)
	require.NoError(t, err)

	grade, err := grader.Grade(question, models.Answer{Payload: datatypes.JSON(`{"text":"A Goroutine communicates over a channel."}`)})
	require.NoError(t, err)
	require.InDelta(t, 10.0, grade, 1e-9)

	grade, err = grader.Grade(question, models.Answer{Payload: datatypes.JSON(`{"text":"channels only"}`)})
	require.NoError(t, err)
	require.InDelta(t, 5.0, grade, 1e-9)
}

func TestValidatePayload(t *testing.T) {
	require.NoError(t, ValidatePayload(KindMultipleChoice, []byte(`{"selected":[1,2]}`)))
	require.Error(t, ValidatePayload(KindMultipleChoice, []byte(`{"selected":"1"}`)))
	require.Error(t, ValidatePayload(KindMultipleChoice, []byte(`{}`)))
	require.NoError(t, ValidatePayload(KindFileUpload, []byte(`{"file_url":"https://cdn.example.com/a.pdf"}`)))
	require.Error(t, ValidatePayload("essay", []byte(`{}`)))
}

func TestAttemptBuildsValidatedAnswer(t *testing.T) {
	question := models.Question{ID: 4, Kind: KindMultipleChoice}

	answer, err := Attempt(question, 9, []byte(`{"selected":[2]}`))
	require.NoError(t, err)
	require.Equal(t, uint(9), answer.SubmissionID)
	require.Equal(t, uint(4), answer.QuestionID)
	require.Equal(t, models.StateAttempting, answer.State)
	require.JSONEq(t, `{"selected":[2]}`, string(answer.Payload))

	_, err = Attempt(question, 9, []byte(`{"selected":"2"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}
