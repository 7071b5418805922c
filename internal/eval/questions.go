package eval

// Question pairs an evaluation query with its expected answer.
type Question struct {
	Text        string `json:"text"`
	GroundTruth string `json:"ground_truth"`
}

// DefaultQuestions is the built-in probe set used when a request does not
// supply its own questions. The questions are document-agnostic on purpose:
// they exercise retrieval and generation against whatever corpus is indexed.
func DefaultQuestions() []Question {
	return []Question{
		{
			Text:        "What is the main topic of the document?",
			GroundTruth: "The document discusses main concepts and methodology",
		},
		{
			Text:        "What methodology is described?",
			GroundTruth: "The document describes research methodology",
		},
		{
			Text:        "What are the key findings?",
			GroundTruth: "The document presents findings and conclusions",
		},
		{
			Text:        "What problem does this address?",
			GroundTruth: "The document addresses a specific problem",
		},
		{
			Text:        "What are the main components?",
			GroundTruth: "The document contains key sections and components",
		},
	}
}
