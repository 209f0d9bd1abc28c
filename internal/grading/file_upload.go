package grading

import "github.com/santhosh-tekuri/jsonschema/v5"

// KindFileUpload identifies questions answered with an uploaded artifact
// reference. These are graded by a person, never automatically.
const KindFileUpload = "file_upload"

func init() {
	register(fileUploadType{})
}

type fileUploadType struct{}

var fileUploadSchema = jsonschema.MustCompileString("file_upload.json", `{
	"type": "object",
	"required": ["file_url"],
	"properties": {
		"file_url": {"type": "string", "minLength": 1},
		"comment": {"type": "string"}
	}
}`)

func (fileUploadType) Kind() string { return KindFileUpload }

func (fileUploadType) PayloadSchema() *jsonschema.Schema { return fileUploadSchema }

func (fileUploadType) Grader() (Grader, bool) { return nil, false }
