package canary

import (
	"embed"

	"canary-speech-client/internal/common/validation"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	createSubjectSchema   = mustLoadSchema("create_subject")
	beginAssessmentSchema = mustLoadSchema("begin_assessment")
	pollSchema            = mustLoadSchema("poll")
	listScoresSchema      = mustLoadSchema("list_scores")
)

func mustLoadSchema(name string) *validation.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return validation.MustCompile(name, data)
}
