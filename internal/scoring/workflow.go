package scoring

import (
	"context"
	"fmt"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// State keys shared by the scoring workflow nodes.
const (
	KeyRecordID = "record_id"
	KeyContext  = "score_context"
	KeyJudgment = "judgment"
	KeyScore    = "final_score"
)

// execute runs the scoring workflow for one record: assemble context, judge
// via the agent, finalize into a persisted score.
func execute(ctx context.Context, rt *Runtime, id string) (*ScoreResult, error) {
	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyRecordID, id)

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(finalState)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("dealdesk-score")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("assemble", AssembleNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("judge", JudgeNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("finalize", FinalizeNode(rt)); err != nil {
		return nil, err
	}

	// assemble → judge → finalize (unconditional)
	if err := graph.AddEdge("assemble", "judge", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("judge", "finalize", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("assemble"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("finalize"); err != nil {
		return nil, err
	}

	return graph, nil
}

// AssembleNode returns the state node that builds the evidence context.
func AssembleNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		id, err := extractRecordID(s)
		if err != nil {
			return s, fmt.Errorf("assemble: %w", err)
		}

		r, err := rt.Records.Get(ctx, id)
		if err != nil {
			return s, fmt.Errorf("assemble: %w", err)
		}

		assembled, err := assemble(ctx, rt, r)
		if err != nil {
			return s, fmt.Errorf("assemble: %w", err)
		}

		rt.Logger.InfoContext(
			ctx, "assemble node complete",
			"record", id,
			"documents", len(assembled.Documents),
			"excluded", assembled.Excluded,
		)

		s = s.Set(KeyContext, *assembled)
		return s, nil
	})
}

// JudgeNode returns the state node that invokes the judgment agent.
func JudgeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		assembled, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("judge: %w", err)
		}

		judgment, err := judge(ctx, rt, assembled)
		if err != nil {
			return s, fmt.Errorf("judge: %w", err)
		}

		rt.Logger.InfoContext(
			ctx, "judge node complete",
			"record", assembled.Record.ID,
			"categories", len(judgment.Categories),
		)

		s = s.Set(KeyJudgment, *judgment)
		return s, nil
	})
}

func extractRecordID(s state.State) (string, error) {
	val, ok := s.Get(KeyRecordID)
	if !ok {
		return "", fmt.Errorf("%w: missing %s in state", ErrAssembleFailed, KeyRecordID)
	}

	id, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrAssembleFailed, KeyRecordID)
	}
	return id, nil
}

func extractContext(s state.State) (*Context, error) {
	val, ok := s.Get(KeyContext)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in state", ErrJudgeFailed, KeyContext)
	}

	assembled, ok := val.(Context)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not Context", ErrJudgeFailed, KeyContext)
	}
	return &assembled, nil
}

func extractJudgment(s state.State) (*judgment, error) {
	val, ok := s.Get(KeyJudgment)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in state", ErrFinalizeFailed, KeyJudgment)
	}

	j, ok := val.(judgment)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not judgment", ErrFinalizeFailed, KeyJudgment)
	}
	return &j, nil
}

func extractResult(s state.State) (*ScoreResult, error) {
	val, ok := s.Get(KeyScore)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in final state", ErrFinalizeFailed, KeyScore)
	}

	result, ok := val.(ScoreResult)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not ScoreResult", ErrFinalizeFailed, KeyScore)
	}
	return &result, nil
}
