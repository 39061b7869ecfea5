// Package ballot turns a voter's answers into the canonical byte string that gets
// signed and sealed, and reads such strings back for display.
//
// Encode is strict and injective. Decode is lenient and must only feed read paths
// such as tallies and audit listings; signatures are always checked against the
// original bytes.
package ballot

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"sealed-ballot/models"
)

const (
	labelPrefix    = "USUARIO:"
	fieldSeparator = "|"
	pairSeparator  = ":"
)

var (
	ErrInvalidBallot = errors.New("invalid ballot")

	labelPattern = regexp.MustCompile(`^[A-Za-z0-9_.@+\-]+$`)
	tokenPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	fieldPattern = regexp.MustCompile(`^([A-Za-z0-9\-]+):([A-Za-z0-9\-]+)$`)
)

// Encode renders label and answers as USUARIO:<label>|<Q>:<A>|... in the order
// given. Callers that need a stable order should pass answers already ordered by
// the question definition.
func Encode(label string, answers []models.Answer) ([]byte, error) {
	if !ValidLabel(label) {
		return nil, errors.Wrapf(ErrInvalidBallot, "label %q", label)
	}

	var buf bytes.Buffer
	buf.WriteString(labelPrefix)
	buf.WriteString(label)

	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !tokenPattern.MatchString(a.Question) {
			return nil, errors.Wrapf(ErrInvalidBallot, "question id %q", a.Question)
		}
		if !tokenPattern.MatchString(a.Code) {
			return nil, errors.Wrapf(ErrInvalidBallot, "answer code %q for %s", a.Code, a.Question)
		}
		if seen[a.Question] {
			return nil, errors.Wrapf(ErrInvalidBallot, "duplicate question %s", a.Question)
		}
		seen[a.Question] = true

		buf.WriteString(fieldSeparator)
		buf.WriteString(a.Question)
		buf.WriteString(pairSeparator)
		buf.WriteString(a.Code)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded ballot. Fields that do not match the question:code
// pattern are skipped, so damaged input yields a partial or empty answer set
// instead of an error.
func Decode(data []byte) (string, []models.Answer) {
	fields := strings.Split(string(data), fieldSeparator)

	var label string
	if strings.HasPrefix(fields[0], labelPrefix) {
		label = strings.TrimPrefix(fields[0], labelPrefix)
		fields = fields[1:]
	}

	answers := make([]models.Answer, 0, len(fields))
	for _, f := range fields {
		m := fieldPattern.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		answers = append(answers, models.Answer{Question: m[1], Code: m[2]})
	}
	return label, answers
}

// ValidLabel reports whether label can be embedded in a canonical ballot.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// AnswerMap flattens answers into a question -> code map. Later duplicates win.
func AnswerMap(answers []models.Answer) map[string]string {
	m := make(map[string]string, len(answers))
	for _, a := range answers {
		m[a.Question] = a.Code
	}
	return m
}
