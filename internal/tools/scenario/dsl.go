package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a parsed activity script: an ordered list of steps built by
// the Lua DSL and executed by the runner.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is a single scripted action with its arguments.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile runs a Lua script and returns the scenario it builds.
// The script must return the value created by Scenario.new.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	registerScenarioConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "critter", Function: scenarioCritter},
	{Name: "fund", Function: scenarioFund},
	{Name: "advance", Function: scenarioAdvance},
	{Name: "start_job", Function: scenarioStartJob},
	{Name: "start_game", Function: scenarioStartGame},
	{Name: "complete", Function: scenarioComplete},
	{Name: "abandon", Function: scenarioAbandon},
	{Name: "expect_active", Function: scenarioExpectActive},
	{Name: "expect_balance", Function: scenarioExpectBalance},
	{Name: "expect_experience", Function: scenarioExpectExperience},
	{Name: "checkpoint", Function: scenarioCheckpoint},
}

func scenarioCritter(state *lua.State) int {
	scenario := checkScenario(state)
	assetID := lua.CheckInteger(state, 2)
	owner := lua.CheckString(state, 3)
	if assetID <= 0 {
		lua.Errorf(state, "critter asset id must be positive")
	}
	if strings.TrimSpace(owner) == "" {
		lua.Errorf(state, "critter owner is required")
	}
	appendStep(scenario, "critter", map[string]any{"asset": assetID, "owner": owner})
	return 0
}

func scenarioFund(state *lua.State) int {
	scenario := checkScenario(state)
	owner := lua.CheckString(state, 2)
	amount := lua.CheckInteger(state, 3)
	if strings.TrimSpace(owner) == "" {
		lua.Errorf(state, "fund owner is required")
	}
	if amount < 0 {
		lua.Errorf(state, "fund amount must not be negative")
	}
	appendStep(scenario, "fund", map[string]any{"owner": owner, "amount": amount})
	return 0
}

func scenarioAdvance(state *lua.State) int {
	scenario := checkScenario(state)
	blocks := lua.CheckInteger(state, 2)
	if blocks <= 0 {
		lua.Errorf(state, "advance blocks must be positive")
	}
	appendStep(scenario, "advance", map[string]any{"blocks": blocks})
	return 0
}

func scenarioStartJob(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "start_job")
	requireArgs(state, "start_job", args, "owner", "asset", "kind", "duration")
	appendStep(scenario, "start_job", args)
	return 0
}

func scenarioStartGame(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "start_game")
	requireArgs(state, "start_game", args, "owner", "asset", "kind", "difficulty")
	appendStep(scenario, "start_game", args)
	return 0
}

func scenarioComplete(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "complete")
	requireArgs(state, "complete", args, "owner")
	appendStep(scenario, "complete", args)
	return 0
}

func scenarioAbandon(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "abandon")
	requireArgs(state, "abandon", args, "owner")
	appendStep(scenario, "abandon", args)
	return 0
}

func scenarioExpectActive(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "expect_active")
	requireArgs(state, "expect_active", args, "owner", "count")
	appendStep(scenario, "expect_active", args)
	return 0
}

func scenarioExpectBalance(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "expect_balance")
	requireArgs(state, "expect_balance", args, "owner", "coins")
	appendStep(scenario, "expect_balance", args)
	return 0
}

func scenarioExpectExperience(state *lua.State) int {
	scenario := checkScenario(state)
	args := tableArgs(state, "expect_experience")
	requireArgs(state, "expect_experience", args, "asset", "amount")
	appendStep(scenario, "expect_experience", args)
	return 0
}

func scenarioCheckpoint(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "checkpoint", nil)
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, args map[string]any) {
	if scenario == nil {
		return
	}
	if args == nil {
		args = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: args})
}

func tableArgs(state *lua.State, kind string) map[string]any {
	if state.TypeOf(2) != lua.TypeTable {
		lua.Errorf(state, "%s expects a table argument", kind)
	}
	return tableToMap(state, 2)
}

// requireArgs raises a Lua error when a required key is absent or blank, so
// malformed scripts fail at load time rather than mid-run.
func requireArgs(state *lua.State, kind string, args map[string]any, keys ...string) {
	for _, key := range keys {
		value, ok := args[key]
		if !ok || value == nil {
			lua.Errorf(state, "%s %s is required", kind, key)
		}
		if text, isText := value.(string); isText && strings.TrimSpace(text) == "" {
			lua.Errorf(state, "%s %s is required", kind, key)
		}
	}
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToMap(state, index)
	default:
		return nil
	}
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
