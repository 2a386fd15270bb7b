package rules

import (
	"context"

	"csguard/internal/engine/syntax"
)

// Analyzer runs the enabled rules over parsed trees. It holds no per-tree
// state and is safe for concurrent use.
type Analyzer struct {
	opts Options
}

// NewAnalyzer returns an analyzer with opts.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.MinNameLength <= 0 {
		opts.MinNameLength = DefaultMinNameLength
	}
	opts.AliasPreference = opts.preference()
	return &Analyzer{opts: opts}
}

// Options returns the analyzer configuration.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Analyze reports every violation found in tree to sink. Generated trees
// yield nothing. On cancellation the violations reported so far stay with
// the sink and ctx.Err() is returned.
func (a *Analyzer) Analyze(ctx context.Context, tree *syntax.Tree, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tree == nil || tree.Generated || tree.Node(tree.Root) == nil {
		return nil
	}

	if err := checkNaming(ctx, tree, a.opts, sink); err != nil {
		return err
	}
	if a.opts.Enabled(RuleUseThisPrefix) {
		if err := checkMemberReferences(ctx, tree, sink); err != nil {
			return err
		}
	}
	if a.opts.Enabled(RuleLinqAliases) {
		if err := checkLinqKeywords(ctx, tree, sink); err != nil {
			return err
		}
	}
	if a.opts.Enabled(RuleBuiltInTypeAliases) {
		if err := ScanBuiltinTypes(ctx, tree, a.opts.AliasPreference, sink); err != nil {
			return err
		}
	}
	return nil
}
