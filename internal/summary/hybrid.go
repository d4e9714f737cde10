package summary

import (
	"context"

	"github.com/leapstack-labs/ledgerlens/internal/prompt"
)

// AbortMessage is reported when the base stage of a chain fails.
const AbortMessage = "aborted: base stage failed"

// previewRunes bounds the stage previews written to the log.
const previewRunes = 500

// Stage names a step of the hybrid chain.
type Stage string

// Chain stages.
const (
	StageBase   Stage = "BASE"
	StageRefine Stage = "REFINE"
)

// HybridRequest describes a base+refine chain over the same data.
type HybridRequest struct {
	Base      string
	Refine    string
	Data      string
	Directive string
	Model     string
}

// ChainResult is the outcome of a hybrid chain. Refined is zero when the
// chain aborted.
type ChainResult struct {
	Base    Result
	Refined Result
	Aborted bool
	Message string
}

// OK reports whether both stages succeeded.
func (c ChainResult) OK() bool {
	return !c.Aborted && c.Refined.OK
}

// Text returns the refined answer.
func (c ChainResult) Text() string {
	return c.Refined.Text
}

// Err returns the failure of whichever stage failed.
func (c ChainResult) Err() error {
	if c.Aborted {
		return c.Base.Err()
	}
	return c.Refined.Err()
}

// Hybrid runs the base instruction over the data, then feeds the base answer
// and the same data to the refine instruction. A failed base stage ends the
// chain without calling the provider again.
func (g *Generator) Hybrid(ctx context.Context, req HybridRequest) ChainResult {
	g.logger.Info("hybrid stage", "stage", StageBase)
	base := g.Generate(ctx, Request{
		Instruction: req.Base,
		Data:        req.Data,
		Model:       req.Model,
	})
	if !base.OK {
		g.logger.Error(AbortMessage, "error", base.Err())
		return ChainResult{Base: base, Aborted: true, Message: AbortMessage}
	}
	g.logger.Info("base summary", "preview", preview(base.Text))

	g.logger.Info("hybrid stage", "stage", StageRefine)
	refined := g.Generate(ctx, Request{
		Instruction: prompt.RefineInstruction(req.Refine, base.Text, req.Data),
		Directive:   req.Directive,
		Model:       req.Model,
		Verbatim:    true,
	})
	if refined.OK {
		g.logger.Info("refined summary", "preview", preview(refined.Text))
	}
	return ChainResult{Base: base, Refined: refined}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
