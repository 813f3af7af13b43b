// Package feedback selects interview feedback prompts and runs them against
// an uploaded recording.
package feedback

import "strings"

// QuestionType is the category of the interview question being answered.
type QuestionType string

const (
	QuestionGeneral    QuestionType = "general"
	QuestionTechnical  QuestionType = "technical"
	QuestionBehavioral QuestionType = "behavioral"
)

// ParseQuestionType normalises s. Unknown or empty values map to
// QuestionGeneral and ok is false.
func ParseQuestionType(s string) (qt QuestionType, ok bool) {
	switch QuestionType(strings.ToLower(strings.TrimSpace(s))) {
	case QuestionGeneral:
		return QuestionGeneral, true
	case QuestionTechnical:
		return QuestionTechnical, true
	case QuestionBehavioral:
		return QuestionBehavioral, true
	default:
		return QuestionGeneral, false
	}
}

// Modality is the kind of media the model analyses.
type Modality string

const (
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// paragraphOnly is appended to every video prompt.
const paragraphOnly = "Write your feedback as a single continuous paragraph with no headings, no bullet points and no numbered lists."

type promptKey struct {
	question QuestionType
	modality Modality
}

var prompts = map[promptKey]string{
	{QuestionGeneral, ModalityVideo}: `Analyze this video interview response and provide constructive feedback.
Focus on:
1. Communication clarity and pace
2. Body language and eye contact (if visible)
3. Confidence and enthusiasm
4. Relevance to the question
5. Areas for improvement
Be specific and actionable.`,

	{QuestionTechnical, ModalityVideo}: `Analyze this technical interview response from the video.
Provide feedback on:
1. Technical accuracy and knowledge depth
2. Problem-solving approach and logical thinking
3. Ability to explain complex concepts clearly
4. Communication effectiveness
5. Areas for technical improvement`,

	{QuestionBehavioral, ModalityVideo}: `Analyze this behavioral interview response from the video.
Provide feedback on:
1. STAR method usage (Situation, Task, Action, Result)
2. Relevance and specificity of examples
3. Storytelling ability and engagement
4. Demonstration of soft skills (teamwork, leadership, etc.)
5. Overall presentation and confidence`,

	{QuestionGeneral, ModalityAudio}: "Analyze this audio interview response and provide constructive feedback. " +
		"Focus on: clarity of communication, pace, confidence level, relevance to the question, and areas for improvement. " +
		"Be specific and actionable.",

	{QuestionTechnical, ModalityAudio}: "Analyze this technical interview response from the audio. " +
		"Provide feedback on: technical accuracy, problem-solving approach, communication of complex concepts, and areas for improvement.",

	{QuestionBehavioral, ModalityAudio}: "Analyze this behavioral interview response from the audio. " +
		"Provide feedback on: STAR method usage, relevance of examples, storytelling ability, and demonstration of soft skills.",
}

// Prompt returns the prompt for a question type and modality. Unrecognised
// question types use the general template.
func Prompt(questionType string, modality Modality) string {
	qt, _ := ParseQuestionType(questionType)
	p, ok := prompts[promptKey{qt, modality}]
	if !ok {
		p = prompts[promptKey{QuestionGeneral, modality}]
	}
	if modality == ModalityVideo {
		p += "\n" + paragraphOnly
	}
	return p
}
