package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Question types inside an MCQ answer key.
const (
	QuestionTypeMCQ  = "MCQ"
	QuestionTypeOpen = "OPEN"
)

// FlexID is a question identifier that tolerates both JSON numbers and
// strings, normalizing to the string form used as the map key in
// manual_grades and submitted answers.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// StringMap is a question-number -> answer-letter map whose values are
// coerced to strings regardless of how the producer encoded them.
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = fmt.Sprintf("%v", t)
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	*m = out
	return nil
}

// KeyQuestion is one entry of an MCQ answer key.
type KeyQuestion struct {
	ID      FlexID   `json:"id"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Correct string   `json:"correct,omitempty"`
}

// MCQKey is the correct_answers shape for MCQ tests.
type MCQKey struct {
	Questions []KeyQuestion `json:"questions"`
}

// BubbleKey is the correct_answers shape for BUBBLE_SHEET and PHYSICAL_SHEET
// tests.
type BubbleKey struct {
	Answers StringMap `json:"answers"`
}

// MCQAnswers is a student's submitted MCQ answer payload, keyed by question id.
type MCQAnswers struct {
	Answers StringMap `json:"answers"`
}

// BubbleAnswers is a student's submitted (or detected) bubble-sheet payload.
// For physical sheets the same object carries file pointers next to the
// answer map.
type BubbleAnswers struct {
	Answers         StringMap `json:"answers"`
	FilePath        string    `json:"file_path,omitempty"`
	BubbleImagePath string    `json:"bubble_image_path,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// ManualGrades carries teacher-assigned fractional grades for OPEN questions.
type ManualGrades struct {
	Grades map[string]float64 `json:"grades"`
}

func ParseMCQKey(raw []byte) (MCQKey, error) {
	var key MCQKey
	if len(raw) == 0 {
		return key, fmt.Errorf("empty answer key")
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return MCQKey{}, err
	}
	return key, nil
}

func ParseBubbleKey(raw []byte) (BubbleKey, error) {
	var key BubbleKey
	if len(raw) == 0 {
		return key, fmt.Errorf("empty answer key")
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return BubbleKey{}, err
	}
	return key, nil
}

func ParseMCQAnswers(raw []byte) (MCQAnswers, error) {
	var a MCQAnswers
	if len(raw) == 0 {
		return a, fmt.Errorf("empty answers")
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return MCQAnswers{}, err
	}
	return a, nil
}

func ParseBubbleAnswers(raw []byte) (BubbleAnswers, error) {
	var a BubbleAnswers
	if len(raw) == 0 {
		return a, fmt.Errorf("empty answers")
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return BubbleAnswers{}, err
	}
	return a, nil
}

func ParseManualGrades(raw []byte) (ManualGrades, error) {
	var g ManualGrades
	if len(raw) == 0 {
		return g, fmt.Errorf("empty manual grades")
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return ManualGrades{}, err
	}
	return g, nil
}

// filePointerKeys are the answer-payload keys that may reference files on
// disk; they are cleaned up best-effort when a submission is deleted.
var filePointerKeys = []string{"file_path", "bubble_image_path", "bubble_image", "image_path"}

// FilePointers extracts any on-disk file references from a stored answers
// payload.
func FilePointers(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	var out []string
	for _, k := range filePointerKeys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// ReplaceAnswerMap overwrites the "answers" key of a stored payload while
// preserving every other key (image path metadata in particular). A payload
// that fails to parse is replaced wholesale.
func ReplaceAnswerMap(raw []byte, answers map[string]string) ([]byte, error) {
	obj := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			obj = map[string]interface{}{}
		}
	}
	obj["answers"] = answers
	return json.Marshal(obj)
}
