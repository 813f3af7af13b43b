package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuestionType(t *testing.T) {
	tests := []struct {
		in     string
		want   QuestionType
		wantOK bool
	}{
		{"general", QuestionGeneral, true},
		{"technical", QuestionTechnical, true},
		{"Behavioral", QuestionBehavioral, true},
		{" technical ", QuestionTechnical, true},
		{"", QuestionGeneral, false},
		{"trivia", QuestionGeneral, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseQuestionType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestPrompt_VideoIsSingleParagraph(t *testing.T) {
	for _, qt := range []string{"general", "technical", "behavioral"} {
		p := Prompt(qt, ModalityVideo)
		assert.Contains(t, p, paragraphOnly, qt)
	}
}

func TestPrompt_AudioHasNoParagraphInstruction(t *testing.T) {
	for _, qt := range []string{"general", "technical", "behavioral"} {
		p := Prompt(qt, ModalityAudio)
		assert.NotContains(t, p, paragraphOnly, qt)
		assert.Contains(t, p, "audio", qt)
	}
}

func TestPrompt_SelectsByQuestionType(t *testing.T) {
	assert.Contains(t, Prompt("technical", ModalityVideo), "Technical accuracy")
	assert.Contains(t, Prompt("behavioral", ModalityVideo), "STAR method")
	assert.Contains(t, Prompt("behavioral", ModalityAudio), "STAR method")
	assert.Contains(t, Prompt("general", ModalityAudio), "clarity of communication")
}

func TestPrompt_UnknownFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, Prompt("general", ModalityVideo), Prompt("riddles", ModalityVideo))
	assert.Equal(t, Prompt("general", ModalityAudio), Prompt("", ModalityAudio))
}
