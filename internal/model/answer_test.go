package model

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

func TestAnswerValue_JSONBareShapes(t *testing.T) {
	set := AnswerSet{
		"v01": Number(4),
		"p01": Text("Hands-on"),
		"d05": List("Parents", "Grades"),
		"k01": Ranking(map[string]int{"Wealth": 1, "Stability": 2}),
	}

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, float64(4), generic["v01"])
	assert.Equal(t, "Hands-on", generic["p01"])
	assert.Equal(t, []interface{}{"Parents", "Grades"}, generic["d05"])
	assert.Equal(t, map[string]interface{}{"Wealth": float64(1), "Stability": float64(2)}, generic["k01"])

	var back AnswerSet
	require.NoError(t, json.Unmarshal(data, &back))
	for id, want := range set {
		assert.True(t, want.Equal(back[id]), "answer %s changed after decode", id)
	}
}

func TestAnswerValue_BSONDocument(t *testing.T) {
	type doc struct {
		Answers AnswerSet `bson:"answers"`
	}
	in := doc{Answers: AnswerSet{
		"v01": Number(3),
		"r01": Text("Yes"),
		"r03": List("Kind"),
		"k01": Ranking(map[string]int{"Autonomy": 1}),
	}}

	data, err := bson.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, bson.Unmarshal(data, &out))
	require.Len(t, out.Answers, 4)
	assert.Equal(t, KindNumber, out.Answers["v01"].Kind)
	assert.Equal(t, 3.0, out.Answers["v01"].Num)
	assert.Equal(t, KindRanking, out.Answers["k01"].Kind)
	assert.Equal(t, 1, out.Answers["k01"].Ranks["Autonomy"])
}

func TestAnswerValue_YAMLTriggerKeepsNumbers(t *testing.T) {
	var c Condition
	err := yaml.Unmarshal([]byte("depends_on: d02\ntrigger_values: [1, 2, \"3\", Yes]\n"), &c)
	require.NoError(t, err)
	require.Len(t, c.TriggerValues, 4)

	assert.Equal(t, KindNumber, c.TriggerValues[0].Kind)
	assert.Equal(t, KindText, c.TriggerValues[2].Kind)
	assert.Equal(t, "Yes", c.TriggerValues[3].Text)
}

func TestAnswerValue_EqualNoCoercion(t *testing.T) {
	assert.False(t, Number(3).Equal(Text("3")))
	assert.True(t, Number(3).Equal(Number(3)))
	assert.False(t, List("a", "b").Equal(List("b", "a")))
	assert.True(t, Ranking(map[string]int{"a": 1}).Equal(Ranking(map[string]int{"a": 1})))
}

func TestCondition_Matches(t *testing.T) {
	c := Condition{DependsOn: "r01", TriggerValues: []AnswerValue{Text("Yes")}}

	assert.False(t, c.Matches(AnswerSet{}), "unanswered controller never matches")
	assert.False(t, c.Matches(AnswerSet{"r01": Text("No")}))
	assert.True(t, c.Matches(AnswerSet{"r01": Text("Yes")}))
	assert.False(t, c.Matches(AnswerSet{"r01": List("Yes")}), "lists never equal scalar triggers")
}

func TestToggleRank_ContiguousAfterArbitraryToggles(t *testing.T) {
	options := []string{"Achievement", "Autonomy", "Creativity", "Stability", "Altruism", "Wealth", "Recognition"}
	rng := rand.New(rand.NewSource(42))

	ranks := map[string]int{}
	for i := 0; i < 500; i++ {
		opt := options[rng.Intn(len(options))]
		ranks, _ = ToggleRank(ranks, opt, 3)
		require.True(t, RanksContiguous(ranks), "ranks %v not contiguous after step %d", ranks, i)
		require.LessOrEqual(t, len(ranks), 3)
	}
}

func TestToggleRank_RemoveClosesGap(t *testing.T) {
	ranks := map[string]int{}
	ranks, _ = ToggleRank(ranks, "a", 0)
	ranks, _ = ToggleRank(ranks, "b", 0)
	ranks, _ = ToggleRank(ranks, "c", 0)

	ranks, ok := ToggleRank(ranks, "a", 0)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"b": 1, "c": 2}, ranks)
	assert.Equal(t, []string{"b", "c"}, RankedOptions(ranks))
}

func TestToggleRank_RespectsMax(t *testing.T) {
	ranks := map[string]int{"a": 1, "b": 2}
	next, ok := ToggleRank(ranks, "c", 2)
	assert.False(t, ok)
	assert.Equal(t, ranks, next)
}

func TestToggleSelection(t *testing.T) {
	items, ok := ToggleSelection(nil, "x", 2)
	require.True(t, ok)
	items, _ = ToggleSelection(items, "y", 2)
	assert.Equal(t, []string{"x", "y"}, items)

	_, ok = ToggleSelection(items, "z", 2)
	assert.False(t, ok)

	items, ok = ToggleSelection(items, "x", 2)
	require.True(t, ok)
	assert.Equal(t, []string{"y"}, items)
}

func TestQuestionDefinition_Validate(t *testing.T) {
	scale := QuestionDefinition{ID: "v01", Type: QuestionTypeScale, ScaleMin: 1, ScaleMax: 5}
	single := QuestionDefinition{ID: "p01", Type: QuestionTypeSingle, Options: []string{"A", "B"}}
	multi := QuestionDefinition{ID: "d05", Type: QuestionTypeMulti, Options: []string{"A", "B", "C"}, MaxSelections: 2}
	rank := QuestionDefinition{ID: "k01", Type: QuestionTypeRank, Options: []string{"A", "B", "C"}, MaxRank: 3}
	text := QuestionDefinition{ID: "r02", Type: QuestionTypeText}

	tests := []struct {
		name    string
		q       QuestionDefinition
		v       AnswerValue
		wantErr bool
	}{
		{"scale in range", scale, Number(5), false},
		{"scale too high", scale, Number(6), true},
		{"scale as text", scale, Text("5"), true},
		{"single known", single, Text("B"), false},
		{"single unknown", single, Text("Z"), true},
		{"multi ok", multi, List("A", "C"), false},
		{"multi too many", multi, List("A", "B", "C"), true},
		{"multi repeated", multi, List("A", "A"), true},
		{"rank ok", rank, Ranking(map[string]int{"A": 2, "C": 1}), false},
		{"rank gap", rank, Ranking(map[string]int{"A": 1, "C": 3}), true},
		{"rank unknown", rank, Ranking(map[string]int{"Z": 1}), true},
		{"text", text, Text("my aunt"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate(tt.v)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)
				return
			}
			require.NoError(t, err)
		})
	}
}
