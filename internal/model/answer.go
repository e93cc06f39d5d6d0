package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"gopkg.in/yaml.v3"
)

// ErrInvalidAnswer is returned when an answer does not fit its question
var ErrInvalidAnswer = errors.New("invalid answer")

// AnswerKind tags the variant held by an AnswerValue
type AnswerKind uint8

const (
	KindNone    AnswerKind = iota
	KindNumber             // scale value
	KindText               // single choice or free text
	KindList               // multi choice
	KindRanking            // option label -> 1-based rank
)

func (k AnswerKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindRanking:
		return "ranking"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// AnswerValue is a tagged union over the answer shapes of the survey.
// It encodes as the bare shape (number, string, array, object) in JSON and BSON.
type AnswerValue struct {
	Kind  AnswerKind
	Num   float64
	Text  string
	List  []string
	Ranks map[string]int
}

// AnswerSet maps question or item ids to answers
type AnswerSet map[string]AnswerValue

// Number builds a scale answer
func Number(v float64) AnswerValue { return AnswerValue{Kind: KindNumber, Num: v} }

// Text builds a single-choice or free-text answer
func Text(s string) AnswerValue { return AnswerValue{Kind: KindText, Text: s} }

// List builds a multi-choice answer
func List(items ...string) AnswerValue {
	return AnswerValue{Kind: KindList, List: append([]string{}, items...)}
}

// Ranking builds a ranked-choice answer
func Ranking(ranks map[string]int) AnswerValue {
	cp := make(map[string]int, len(ranks))
	for k, v := range ranks {
		cp[k] = v
	}
	return AnswerValue{Kind: KindRanking, Ranks: cp}
}

// IsZero reports whether no answer is held.
func (v AnswerValue) IsZero() bool {
	return v.Kind == KindNone
}

// Equal compares kind and value exactly. Numbers never equal strings.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Text == o.Text
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	case KindRanking:
		if len(v.Ranks) != len(o.Ranks) {
			return false
		}
		for k, r := range v.Ranks {
			if o.Ranks[k] != r {
				return false
			}
		}
		return true
	}
	return false
}

// Raw returns the bare Go value used for encoding.
func (v AnswerValue) Raw() interface{} {
	switch v.Kind {
	case KindNone:
		return nil
	case KindNumber:
		return v.Num
	case KindText:
		return v.Text
	case KindList:
		if v.List == nil {
			return []string{}
		}
		return v.List
	case KindRanking:
		if v.Ranks == nil {
			return map[string]int{}
		}
		return v.Ranks
	}
	return nil
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidAnswer)
	}
	switch data[0] {
	case 'n':
		*v = AnswerValue{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = List(items...)
	case '{':
		var ranks map[string]int
		if err := json.Unmarshal(data, &ranks); err != nil {
			return err
		}
		*v = Ranking(ranks)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}

func (v AnswerValue) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(v.Raw())
}

func (v *AnswerValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*v = AnswerValue{}
	case bsontype.Double:
		*v = Number(raw.Double())
	case bsontype.Int32:
		*v = Number(float64(raw.Int32()))
	case bsontype.Int64:
		*v = Number(float64(raw.Int64()))
	case bsontype.String:
		*v = Text(raw.StringValue())
	case bsontype.Array:
		var items []string
		if err := raw.Unmarshal(&items); err != nil {
			return err
		}
		*v = List(items...)
	case bsontype.EmbeddedDocument:
		var ranks map[string]int
		if err := raw.Unmarshal(&ranks); err != nil {
			return err
		}
		*v = Ranking(ranks)
	default:
		return fmt.Errorf("%w: unsupported bson type %s", ErrInvalidAnswer, t)
	}
	return nil
}

// UnmarshalYAML decodes catalog trigger values; numbers stay numbers.
func (v *AnswerValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!int", "!!float":
			var n float64
			if err := node.Decode(&n); err != nil {
				return err
			}
			*v = Number(n)
		case "!!null":
			*v = AnswerValue{}
		default:
			*v = Text(node.Value)
		}
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*v = List(items...)
	case yaml.MappingNode:
		var ranks map[string]int
		if err := node.Decode(&ranks); err != nil {
			return err
		}
		*v = Ranking(ranks)
	default:
		return fmt.Errorf("%w: unsupported yaml node at line %d", ErrInvalidAnswer, node.Line)
	}
	return nil
}

// Clone returns a deep copy of the set.
func (s AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(s))
	for k, v := range s {
		switch v.Kind {
		case KindList:
			v = List(v.List...)
		case KindRanking:
			v = Ranking(v.Ranks)
		}
		out[k] = v
	}
	return out
}

// Number returns the numeric answer for id, or 0 when missing or not numeric.
func (s AnswerSet) Number(id string) float64 {
	if v, ok := s[id]; ok && v.Kind == KindNumber {
		return v.Num
	}
	return 0
}

// Text returns the text answer for id, or "" when missing or not text.
func (s AnswerSet) Text(id string) string {
	if v, ok := s[id]; ok && v.Kind == KindText {
		return v.Text
	}
	return ""
}

// RanksContiguous reports whether the ranks are exactly {1..len(ranks)}.
func RanksContiguous(ranks map[string]int) bool {
	seen := make([]bool, len(ranks)+1)
	for _, r := range ranks {
		if r < 1 || r > len(ranks) || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}

// ToggleRank ranks option next, or unranks it and closes the gap.
// It returns false when option would exceed maxRank.
func ToggleRank(ranks map[string]int, option string, maxRank int) (map[string]int, bool) {
	next := make(map[string]int, len(ranks)+1)
	for k, r := range ranks {
		next[k] = r
	}

	if removed, ok := next[option]; ok {
		delete(next, option)
		for k, r := range next {
			if r > removed {
				next[k] = r - 1
			}
		}
		return next, true
	}

	if maxRank > 0 && len(next) >= maxRank {
		return next, false
	}
	next[option] = len(next) + 1
	return next, true
}

// RankedOptions lists ranked options ordered by rank.
func RankedOptions(ranks map[string]int) []string {
	out := make([]string, 0, len(ranks))
	for k := range ranks {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return ranks[out[i]] < ranks[out[j]] })
	return out
}

// ToggleSelection adds or removes option, keeping selection order.
// It returns false when option would exceed maxSelections.
func ToggleSelection(items []string, option string, maxSelections int) ([]string, bool) {
	next := make([]string, 0, len(items)+1)
	found := false
	for _, it := range items {
		if it == option {
			found = true
			continue
		}
		next = append(next, it)
	}
	if found {
		return next, true
	}
	if maxSelections > 0 && len(items) >= maxSelections {
		return append([]string{}, items...), false
	}
	return append(next, option), true
}
