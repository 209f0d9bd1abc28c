package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/ujian-go-api/internal/models"
)

// KindTextResponse identifies free-text questions graded by keyword match.
const KindTextResponse = "text_response"

func init() {
	register(textResponseType{})
}

type textResponseType struct{}

var textResponseSchema = jsonschema.MustCompileString("text_response.json", `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"text": {"type": "string"}
	}
}`)

func (textResponseType) Kind() string { return KindTextResponse }

func (textResponseType) PayloadSchema() *jsonschema.Schema { return textResponseSchema }

func (textResponseType) Grader() (Grader, bool) { return textResponseGrader{}, true }

type textResponseOptions struct {
	Keywords      []string `json:"keywords"`
	CaseSensitive bool     `json:"case_sensitive"`
}

type textResponsePayload struct {
	Text string `json:"text"`
}

type textResponseGrader struct{}

// Grade awards a proportional share of the question grade per matched
// keyword. A question without keywords grades to zero and is effectively
// manual.
func (textResponseGrader) Grade(question models.Question, answer models.Answer) (float64, error) {
	var options textResponseOptions
	if err := json.Unmarshal(question.Options, &options); err != nil {
		return 0, fmt.Errorf("question %d options malformed: %w", question.ID, err)
	}

	var payload textResponsePayload
	if err := json.Unmarshal(answer.Payload, &payload); err != nil {
		return 0, fmt.Errorf("answer %d payload malformed: %w", answer.ID, err)
	}

	if len(options.Keywords) == 0 {
		return 0, nil
	}

	text := payload.Text
	if !options.CaseSensitive {
		text = strings.ToLower(text)
	}

	matched := 0
	for _, keyword := range options.Keywords {
		if !options.CaseSensitive {
			keyword = strings.ToLower(keyword)
		}
		if strings.Contains(text, keyword) {
			matched++
		}
	}

	return question.MaxGrade * float64(matched) / float64(len(options.Keywords)), nil
}
