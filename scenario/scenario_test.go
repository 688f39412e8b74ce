package scenario

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-gate/gate"
)

func TestScenariosGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, f := range files {
		s, err := Load(f)
		require.NoError(t, err)
		t.Run(s.Name, func(t *testing.T) {
			g.Assert(t, s.Name, []byte(s.Run().String()))
		})
	}
}

func TestThreeTwoOutput(t *testing.T) {
	s, err := Load("testdata/three_two.yaml")
	require.NoError(t, err)

	tr := s.Run()
	var passedOn, released []int
	for _, n := range tr.Output {
		if n.Velocity > 0 {
			passedOn = append(passedOn, n.Pitch)
		} else {
			released = append(released, n.Pitch)
		}
	}
	assert.Equal(t, []int{60, 61, 62, 65}, passedOn)
	assert.Equal(t, []int{60, 61, 62, 65}, released)
	assert.Empty(t, tr.Final.Held)
	assert.Equal(t, 6, tr.Final.Position)
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - on: [60]
`))
	require.NoError(t, err)
	assert.Equal(t, gate.DefaultPattern, s.Pattern)

	tr := s.Run()
	require.Len(t, tr.Output, 1)
	assert.Equal(t, gate.Note{Pitch: 60, Velocity: DefaultVelocity}, tr.Output[0])
}

func TestParsePreserveHeld(t *testing.T) {
	s, err := Parse([]byte(`
pattern: {on: 1, off: 0}
preserveHeld: true
steps:
  - on: [60]
  - set: {on: 2, off: 2}
  - off: [60]
`))
	require.NoError(t, err)
	assert.Equal(t, "NoteOn 60: PASS (1/1)\n-> 60 100\nSet pattern: 2 ON / 2 OFF\n-> 60 0\n", s.Run().String())
}

func TestParseRejectsInvalidSteps(t *testing.T) {
	tests := map[string]string{
		"empty step":  "steps:\n  - velocity: 3\n",
		"two actions": "steps:\n  - on: [1]\n    off: [1]\n",
		"unknown key": "steps:\n  - panic: true\n",
		"bad syntax":  "steps: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("steps:\n  - reset: true\n  - {}\n"))
	assert.ErrorIs(t, err, ErrInvalidStep)
	assert.ErrorContains(t, err, "step 2")
}

func TestLoadNamesFromFile(t *testing.T) {
	s, err := Load("testdata/three_two.yaml")
	require.NoError(t, err)
	assert.Equal(t, "three_two", s.Name)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}
