package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuswatch/internal/autoimport"
	"focuswatch/internal/delta"
	"focuswatch/internal/game"
	"focuswatch/internal/monitor"
)

// executeCommand runs the CLI with an empty config file and captures output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o644))

	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	doc := `{
		"localPlayerCellId": 3,
		"myTeam": [{"cellId": 3, "championId": 0, "assignedPosition": ""}],
		"actions": [[{"actorCellId": 3, "championId": 64, "type": "pick", "completed": true}]]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := executeCommand(t, "resolve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "champion 64, role mid (detected: false)")

	out, err = executeCommand(t, "resolve", "--cell", "7", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no champion yet")
}

func TestResolveCommand_BadFile(t *testing.T) {
	_, err := executeCommand(t, "resolve", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBenchmarkCommand_Fallback(t *testing.T) {
	out, err := executeCommand(t, "benchmark", "--role", "support", "--bracket", "gold", "--at", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "support / gold at 10:00")

	out, err = executeCommand(t, "benchmark", "--role", "mid", "--at", "600", "--cs", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Critical")
}

func TestBenchmarkCommand_UnknownRole(t *testing.T) {
	_, err := executeCommand(t, "benchmark", "--role", "roamer")
	assert.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	id, role := 64, game.RoleMid
	tests := []struct {
		name string
		ev   monitor.Event
		want string
	}{
		{"state", monitor.StateChanged{PreviousPhase: game.PhaseLobby, NewPhase: game.PhaseChampSelect}, "Lobby -> ChampSelect"},
		{"state with champion", monitor.StateChanged{PreviousPhase: game.PhaseChampSelect, NewPhase: game.PhaseGameStart, ChampionID: &id, Role: &role}, "champion 64 mid"},
		{"stats", monitor.StatsUpdated{CurrentCS: 40, GameTimeSeconds: 600, CSPerMinute: 4, TargetRate: 6, Delta: -2, Band: delta.BandCritical}, "40 cs @ 10:00"},
		{"resolved", monitor.ChampionResolved{ChampionID: 64, Role: game.RoleSupport, RoleDetected: true, Changed: true}, "champion 64 as support (detected)"},
		{"import", autoimport.ImportFinished{ChampionID: 64, Message: "Items imported"}, "imported champion 64: Items imported"},
		{"import failed", autoimport.ImportFailed{ChampionID: 64, Error: "boom"}, "import failed for champion 64: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatEvent(tt.ev), tt.want)
		})
	}

	assert.Empty(t, formatEvent(monitor.ChampionResolved{ChampionID: 64}))
	assert.Empty(t, formatEvent(monitor.Transition{}))
}

func TestClockTime(t *testing.T) {
	assert.Equal(t, "00:00", clockTime(0))
	assert.Equal(t, "10:05", clockTime(605.7))
}
