package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleverhq/appilot/internal/action"
)

func TestParse_JSON(t *testing.T) {
	t.Parallel()

	raw := `{"Decision": "CONTINUE", "Thought": "The list scrolled down.", "Documentation": "Scrolls the result list."}`
	r, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, action.VerdictContinue, r.Verdict)
	assert.Equal(t, "The list scrolled down.", r.Thought)
	assert.Equal(t, "Scrolls the result list.", r.Documentation)
}

func TestParse_MissingDocumentationGetsPlaceholder(t *testing.T) {
	t.Parallel()

	for _, decision := range []string{"BACK", "CONTINUE", "SUCCESS"} {
		r, err := Parse(`{"Decision": "` + decision + `", "Thought": "t"}`)
		require.NoError(t, err)
		assert.Equal(t, DocPlaceholder, r.Documentation, decision)
	}
}

func TestParse_IneffectiveDropsDocumentation(t *testing.T) {
	t.Parallel()

	r, err := Parse(`{"Decision": "INEFFECTIVE", "Thought": "nothing changed", "Documentation": "stray text"}`)
	require.NoError(t, err)
	assert.Equal(t, action.VerdictIneffective, r.Verdict)
	assert.Empty(t, r.Documentation)
}

func TestParse_Markers(t *testing.T) {
	t.Parallel()

	raw := "Decision: SUCCESS\nThought: The settings page is open.\nDocumentation: Opens the settings page."
	r, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, action.VerdictSuccess, r.Verdict)
	assert.Equal(t, "Opens the settings page.", r.Documentation)
}

func TestParse_RepairedJSON(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"Decision\": \"BACK\", \"Thought\": \"wrong page\",}\n```"
	r, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, action.VerdictBack, r.Verdict)
}

func TestParse_VerdictWrappedInProse(t *testing.T) {
	t.Parallel()

	r, err := Parse(`{"Decision": "my decision is CONTINUE.", "Thought": "t"}`)
	require.NoError(t, err)
	assert.Equal(t, action.VerdictContinue, r.Verdict)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"too short", "ok"},
		{"no decision", `{"Thought": "something happened here"}` + "\nno markers either"},
		{"unknown decision", `{"Decision": "MAYBE", "Thought": "unsure about this one"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("tapping", "3", "open settings", "")
	assert.Contains(t, p, "before tapping the UI element labeled with the number 3")
	assert.Contains(t, p, "open settings")
	assert.Contains(t, p, "summarized as follows: None")
}

func TestActionDesc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tapping", ActionDesc(action.Action{Kind: action.KindTap}))
	assert.Equal(t, "swiping up on", ActionDesc(action.Action{Kind: action.KindSwipe, Direction: "up"}))
	assert.Equal(t, "long pressing", ActionDesc(action.Action{Kind: action.KindLongPress}))
}
