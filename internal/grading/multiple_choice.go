package grading

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// KindMultipleChoice identifies option-set questions.
const KindMultipleChoice = "multiple_choice"

func init() {
	register(multipleChoiceType{})
}

type multipleChoiceType struct{}

var multipleChoiceSchema = jsonschema.MustCompileString("multiple_choice.json", `{
	"type": "object",
	"required": ["selected"],
	"properties": {
		"selected": {
			"type": "array",
			"items": {"type": "integer", "minimum": 0}
		}
	}
}`)

func (multipleChoiceType) Kind() string { return KindMultipleChoice }

func (multipleChoiceType) PayloadSchema() *jsonschema.Schema { return multipleChoiceSchema }

func (multipleChoiceType) Grader() (Grader, bool) { return multipleChoiceGrader{}, true }

type multipleChoiceOptions struct {
	Choices []string `json:"choices"`
	Correct []uint   `json:"correct"`
}

type multipleChoicePayload struct {
	Selected []uint `json:"selected"`
}

type multipleChoiceGrader struct{}

// Grade awards the full question grade for an exact match of the correct
// option set, zero otherwise.
func (multipleChoiceGrader) Grade(question models.Question, answer models.Answer) (float64, error) {
	var options multipleChoiceOptions
	if err := json.Unmarshal(question.Options, &options); err != nil {
		return 0, fmt.Errorf("question %d options malformed: %w", question.ID, err)
	}

	var payload multipleChoicePayload
	if err := json.Unmarshal(answer.Payload, &payload); err != nil {
		return 0, fmt.Errorf("answer %d payload malformed: %w", answer.ID, err)
	}

	if sameChoiceSet(options.Correct, payload.Selected) {
		return question.MaxGrade, nil
	}

	return 0, nil
}

func sameChoiceSet(correct, selected []uint) bool {
	expected := make(map[uint]struct{}, len(correct))
	for _, id := range correct {
		expected[id] = struct{}{}
	}

	chosen := make(map[uint]struct{}, len(selected))
	for _, id := range selected {
		if _, ok := expected[id]; !ok {
			return false
		}
		chosen[id] = struct{}{}
	}

	return len(chosen) == len(expected)
}
