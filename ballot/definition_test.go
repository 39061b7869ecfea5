package ballot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sealed-ballot/models"
)

func TestDefinition_Validate(t *testing.T) {
	def := DefaultDefinition()

	t.Run("canonical order", func(t *testing.T) {
		answers, err := def.Validate(map[string]string{
			"P4": "RAPIDO", "P2": "FACIL", "P1": "ALTO", "P3": "MUCHO",
		})
		require.NoError(t, err)
		require.Equal(t, referenceAnswers(), answers)
	})

	t.Run("missing question", func(t *testing.T) {
		_, err := def.Validate(map[string]string{"P1": "ALTO", "P2": "FACIL", "P3": "MUCHO"})
		require.ErrorIs(t, err, ErrIncompleteBallot)
	})

	t.Run("empty answer", func(t *testing.T) {
		_, err := def.Validate(map[string]string{"P1": "ALTO", "P2": "FACIL", "P3": "MUCHO", "P4": ""})
		require.ErrorIs(t, err, ErrIncompleteBallot)
	})

	t.Run("code not offered", func(t *testing.T) {
		_, err := def.Validate(map[string]string{"P1": "ALTO", "P2": "FACIL", "P3": "MUCHO", "P4": "MAYBE"})
		require.ErrorIs(t, err, ErrUnknownAnswer)
	})

	t.Run("extra question", func(t *testing.T) {
		_, err := def.Validate(map[string]string{"P1": "ALTO", "P2": "FACIL", "P3": "MUCHO", "P4": "LENTO", "P5": "X"})
		require.ErrorIs(t, err, ErrUnknownAnswer)
	})
}

func TestDefinition_Label(t *testing.T) {
	def := DefaultDefinition()
	require.Equal(t, "Muy rápido", def.Label("P4", "RAPIDO"))
	require.Equal(t, "Tal vez", def.Label("P3", "TAL-VEZ"))
	require.Equal(t, "OTHER", def.Label("P3", "OTHER"))
	require.Equal(t, "N/A", def.Label("P9", "N/A"))
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
questions:
  - id: Q1
    text: Colour
    options:
      - code: RED
        label: Red
      - code: BLUE
        label: Blue
  - id: Q2
    text: Free answer
`), 0o600))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	require.Len(t, def.Questions, 2)

	answers, err := def.Validate(map[string]string{"Q1": "BLUE", "Q2": "ANY-THING"})
	require.NoError(t, err)
	require.Equal(t, []models.Answer{{Question: "Q1", Code: "BLUE"}, {Question: "Q2", Code: "ANY-THING"}}, answers)

	_, err = def.Validate(map[string]string{"Q1": "BLUE", "Q2": "with space"})
	require.ErrorIs(t, err, ErrUnknownAnswer)
}

func TestLoadDefinition_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":        "questions: []\n",
		"duplicate id": "questions:\n  - id: P1\n  - id: P1\n",
		"bad id":       "questions:\n  - id: \"P|1\"\n",
		"bad code":     "questions:\n  - id: P1\n    options:\n      - code: \"A:B\"\n",
		"not yaml":     "questions: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadDefinition(path)
			require.Error(t, err)
		})
	}
}
