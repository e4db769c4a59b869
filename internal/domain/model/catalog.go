package model

// Credential is an opaque secret authorizing calls to the external
// text-generation service.
type Credential string

// Tail returns the last four characters for log output; the full secret is
// never logged.
func (c Credential) Tail() string {
	s := string(c)
	if len(s) <= 4 {
		return "****"
	}
	return s[len(s)-4:]
}

// TaskCategory classifies calls by input/output modality. Each category
// maps to an ordered model list in the catalog.
type TaskCategory string

const (
	TaskTextToText       TaskCategory = "text_to_text"
	TaskMultimodalToText TaskCategory = "multimodal_to_text"
	TaskTextToAudio      TaskCategory = "text_to_audio"
	TaskImageGeneration  TaskCategory = "image_generation"
)

// ModelDescriptor is one entry of a category's model list. Tier is the
// position in that list; higher means more capable, the last entry is
// "best".
type ModelDescriptor struct {
	Name        string
	OutputLimit int
	Tier        int
}
