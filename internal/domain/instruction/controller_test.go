package instruction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/testutil"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

func newTestController() (*Controller, *selection.State) {
	state := selection.NewState()
	return NewController(state, nil), state
}

func TestReduce_Table(t *testing.T) {
	start := selection.Facets{Selected: true, Highlighted: true, Group: "g"}
	cases := []struct {
		name string
		ins  Instruction
		want selection.Facets
	}{
		{"add", Instruction{Kind: KindAdd}, selection.Facets{Selected: true, Highlighted: true, Group: "g"}},
		{"remove", Instruction{Kind: KindRemove}, selection.Facets{}},
		{"highlight", Instruction{Kind: KindHighlight}, selection.Facets{Selected: true, Highlighted: true, Group: "g"}},
		{"obscure", Instruction{Kind: KindObscure}, selection.Facets{Selected: true, Obscured: true, Group: "g"}},
		{"group", Instruction{Kind: KindGroup, Label: "h"}, selection.Facets{Selected: true, Highlighted: true, Group: "h"}},
		{"general", Instruction{Kind: KindGeneral}, start},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Reduce(start, tc.ins))
		})
	}
}

func TestController_AddThenGroup(t *testing.T) {
	c, state := newTestController()
	res, err := c.Apply([]Instruction{
		{Kind: KindAdd, Targets: []string{"A"}},
		{Kind: KindGroup, Targets: []string{"A"}, Label: "cluster-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, []string{"A"}, res.Touched)
	assert.Equal(t, selection.Facets{Selected: true, Group: "cluster-3"}, state.Query("A"))
}

func TestController_UnknownTargetIsNotAnError(t *testing.T) {
	c, state := newTestController()
	_, err := c.Apply([]Instruction{{Kind: KindHighlight, Targets: []string{"ghost-1"}}})
	require.NoError(t, err)
	f, ok := state.Lookup("ghost-1")
	require.True(t, ok)
	assert.True(t, f.Highlighted)
}

func TestController_RemoveAfterAddClearsEverything(t *testing.T) {
	c, state := newTestController()
	_, err := c.Apply([]Instruction{
		{Kind: KindAdd, Targets: []string{"A"}},
		{Kind: KindHighlight, Targets: []string{"A"}},
		{Kind: KindGroup, Targets: []string{"A"}, Label: "g"},
	})
	require.NoError(t, err)
	_, err = c.Apply([]Instruction{{Kind: KindRemove, Targets: []string{"A"}}})
	require.NoError(t, err)
	assert.True(t, state.Query("A").IsZero())
}

func TestController_HighlightThenObscure(t *testing.T) {
	c, state := newTestController()
	_, err := c.Apply([]Instruction{
		{Kind: KindHighlight, Targets: []string{"A"}},
		{Kind: KindObscure, Targets: []string{"A"}},
	})
	require.NoError(t, err)
	f := state.Query("A")
	assert.False(t, f.Highlighted)
	assert.True(t, f.Obscured)

	_, err = c.Apply([]Instruction{{Kind: KindHighlight, Targets: []string{"A"}}})
	require.NoError(t, err)
	f = state.Query("A")
	assert.True(t, f.Highlighted)
	assert.False(t, f.Obscured)
}

func TestController_LastWriteWins(t *testing.T) {
	c, state := newTestController()
	_, err := c.Apply([]Instruction{
		{Kind: KindGroup, Targets: []string{"A", "B"}, Label: "first"},
		{Kind: KindGroup, Targets: []string{"A"}, Label: "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, "second", state.Query("A").Group)
	assert.Equal(t, "first", state.Query("B").Group)
}

func TestController_GeneralIsNoop(t *testing.T) {
	c, state := newTestController()
	res, err := c.Apply([]Instruction{{Kind: KindGeneral, Targets: []string{"A"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Touched)
	assert.Equal(t, 0, state.Len())
}

func TestController_InvalidBatchLeavesStateUntouched(t *testing.T) {
	c, state := newTestController()
	_, err := c.Apply([]Instruction{
		{Kind: KindAdd, Targets: []string{"A"}},
		{Kind: Kind("PIN_CONTEXT"), Targets: []string{"A"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
	assert.Equal(t, 0, state.Len())
}

func TestController_GroupRequiresLabel(t *testing.T) {
	c, _ := newTestController()
	_, err := c.Apply([]Instruction{{Kind: KindGroup, Targets: []string{"A"}}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
}

func TestController_EmptyTargetRejected(t *testing.T) {
	c, _ := newTestController()
	_, err := c.Apply([]Instruction{{Kind: KindAdd, Targets: []string{""}}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
}

func TestInstruction_TargetsRequiredUnlessGeneral(t *testing.T) {
	for _, k := range Kinds {
		ins := Instruction{Kind: k, Label: "g"}
		if k == KindGeneral {
			assert.NoError(t, ins.Validate())
			assert.NoError(t, Instruction{Kind: k, Targets: []string{}}.Validate())
			continue
		}
		err := ins.Validate()
		require.Error(t, err, k)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
		assert.Contains(t, err.Error(), "required_unless")
		assert.Error(t, Instruction{Kind: k, Label: "g", Targets: []string{}}.Validate(), k)
	}

	c, state := newTestController()
	_, err := c.ApplyMessage(Message{ID: 2, Role: RoleAssistant, Instructions: []Instruction{
		{Kind: KindAdd, Targets: []string{"A"}},
		{Kind: KindAdd},
	}})
	require.Error(t, err)
	assert.Equal(t, 0, state.Len())
}

func TestController_ApplyMessage(t *testing.T) {
	log := testutil.NewMockLogger()
	state := selection.NewState()
	c := NewController(state, log)

	raw := `{
		"id": 7,
		"timestamp": "2024-03-01T10:00:00Z",
		"role": "assistant",
		"text": "Here are the related papers.",
		"citations": [{"id": "p1", "title": "Grid binning"}],
		"instructions": [
			{"type": "ADD_CONTEXT", "targets": ["p1", "bin:3_4"]},
			{"type": "GENERAL_CONTEXT"}
		]
	}`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	res, err := c.ApplyMessage(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "bin:3_4"}, res.Touched)
	assert.True(t, state.Query("bin:3_4").Selected)
	assert.True(t, log.HasMessage("info", "message applied"))
}

func TestController_ApplyMessage_InvalidRole(t *testing.T) {
	c, state := newTestController()
	_, err := c.ApplyMessage(Message{ID: 1, Role: Role("robot"), Instructions: []Instruction{
		{Kind: KindAdd, Targets: []string{"A"}},
	}})
	require.Error(t, err)
	assert.Equal(t, 0, state.Len())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" add_context ")
	require.NoError(t, err)
	assert.Equal(t, KindAdd, k)

	_, err = ParseKind("PIN_CONTEXT")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
}
