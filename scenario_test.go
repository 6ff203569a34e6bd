package availsim

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/quentel/availsim/engine"
)

func TestScenario_BlockDelayCycle_FiringTrace(t *testing.T) {
	s := NewSystem("scenario")
	blk, err := s.AddComponent("block")
	require.NoError(t, err)
	_, err = blk.AddFlowOut(FlowOutSpec{Name: "is_ok", ProdDefault: true})
	require.NoError(t, err)
	_, err = blk.AddDelayFailureMode("frun", 4, 2,
		[]string{"!is_ok_fed_available_out"},
		[]string{"is_ok_fed_available_out"})
	require.NoError(t, err)
	require.NoError(t, s.Build())

	cfg := &engine.Config{
		Runs:     1,
		Seed:     1,
		Schedule: []engine.Window{{Start: 0, End: 24, NValues: 1}},
	}
	res, err := s.Simulate(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Runs, 1)

	var buf bytes.Buffer
	for _, f := range res.Runs[0].Firings {
		fmt.Fprintf(&buf, "t=%g %s %s\n", f.Time, f.Automaton, f.Transition)
	}
	goldie.New(t).Assert(t, "block_delay_cycle", buf.Bytes())
}
