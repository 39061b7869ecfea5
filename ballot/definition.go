package ballot

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"sealed-ballot/models"
)

var (
	ErrIncompleteBallot = errors.New("all questions must be answered")
	ErrUnknownAnswer    = errors.New("answer is not offered for this question")
)

// Option is one allowed answer code with its human readable label.
type Option struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Question is a required ballot question. An empty Options list accepts any
// code that fits the canonical charset.
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// Definition is the fixed, ordered set of required questions. Its order is the
// canonical answer order used by Encode.
type Definition struct {
	Questions []Question `yaml:"questions" json:"questions"`
}

// DefaultDefinition is the four-question survey of the reference deployment.
func DefaultDefinition() *Definition {
	return &Definition{Questions: []Question{
		{ID: "P1", Text: "Pregunta 1", Options: []Option{
			{Code: "ALTO", Label: "Alto"},
			{Code: "MEDIO", Label: "Medio"},
			{Code: "BAJO", Label: "Bajo"},
		}},
		{ID: "P2", Text: "Pregunta 2", Options: []Option{
			{Code: "FACIL", Label: "Fáciles"},
			{Code: "ADECUADO", Label: "Adecuados"},
			{Code: "DIFICIL", Label: "Difíciles"},
		}},
		{ID: "P3", Text: "Pregunta 3", Options: []Option{
			{Code: "MUCHO", Label: "Sí, mucho"},
			{Code: "TAL-VEZ", Label: "Tal vez"},
			{Code: "NO-DUDA", Label: "No, lo dudo"},
		}},
		{ID: "P4", Text: "Pregunta 4", Options: []Option{
			{Code: "RAPIDO", Label: "Muy rápido"},
			{Code: "ADECUADO", Label: "Adecuados"},
			{Code: "LENTO", Label: "Muy lento"},
		}},
	}}
}

// LoadDefinition reads a question definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read question definition")
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "failed to parse question definition")
	}
	if err := def.check(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) check() error {
	if len(d.Questions) == 0 {
		return errors.New("question definition has no questions")
	}
	seen := make(map[string]bool)
	for _, q := range d.Questions {
		if !tokenPattern.MatchString(q.ID) {
			return errors.Errorf("question id %q is not alphanumeric", q.ID)
		}
		if seen[q.ID] {
			return errors.Errorf("question %s defined twice", q.ID)
		}
		seen[q.ID] = true
		for _, o := range q.Options {
			if !tokenPattern.MatchString(o.Code) {
				return errors.Errorf("answer code %q of %s is not alphanumeric", o.Code, q.ID)
			}
		}
	}
	return nil
}

// Validate checks that answers covers exactly the defined questions with offered
// codes and returns them in canonical order.
func (d *Definition) Validate(answers map[string]string) ([]models.Answer, error) {
	ordered := make([]models.Answer, 0, len(d.Questions))
	for _, q := range d.Questions {
		code, ok := answers[q.ID]
		if !ok || code == "" {
			return nil, errors.Wrapf(ErrIncompleteBallot, "missing %s", q.ID)
		}
		if !q.offers(code) {
			return nil, errors.Wrapf(ErrUnknownAnswer, "%s:%s", q.ID, code)
		}
		ordered = append(ordered, models.Answer{Question: q.ID, Code: code})
	}
	if len(answers) != len(d.Questions) {
		for id := range answers {
			if d.question(id) == nil {
				return nil, errors.Wrapf(ErrUnknownAnswer, "unknown question %s", id)
			}
		}
	}
	return ordered, nil
}

// Label translates an answer code into its readable label, falling back to the
// code itself.
func (d *Definition) Label(questionID, code string) string {
	q := d.question(questionID)
	if q == nil {
		return code
	}
	for _, o := range q.Options {
		if o.Code == code && o.Label != "" {
			return o.Label
		}
	}
	return code
}

func (d *Definition) question(id string) *Question {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i]
		}
	}
	return nil
}

func (q *Question) offers(code string) bool {
	if len(q.Options) == 0 {
		return tokenPattern.MatchString(code)
	}
	for _, o := range q.Options {
		if o.Code == code {
			return true
		}
	}
	return false
}
