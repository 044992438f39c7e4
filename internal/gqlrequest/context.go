package gqlrequest

import "context"

type analysisContextKey struct{}
type execMetaContextKey struct{}

// ExecMeta is the part of the analysis that outlives request parsing and is
// attached to metrics and logs.
type ExecMeta struct {
	OperationName string
	OperationType string
	OperationHash string
	RootFields    []string
}

// MetaFromAnalysis extracts ExecMeta. A nil analysis yields the zero value.
func MetaFromAnalysis(analysis *Analysis) ExecMeta {
	if analysis == nil {
		return ExecMeta{}
	}
	return ExecMeta{
		OperationName: analysis.OperationName,
		OperationType: analysis.OperationType,
		OperationHash: analysis.OperationHash,
		RootFields:    analysis.RootFields,
	}
}

// WithAnalysis stores GraphQL request analysis in context.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	return context.WithValue(ctx, analysisContextKey{}, analysis)
}

// AnalysisFromContext retrieves GraphQL request analysis from context.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	analysis, _ := ctx.Value(analysisContextKey{}).(*Analysis)
	return analysis
}

// WithExecMeta stores execution metadata in context.
func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	return context.WithValue(ctx, execMetaContextKey{}, meta)
}

// ExecMetaFromContext retrieves execution metadata from context.
func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	if ctx == nil {
		return ExecMeta{}, false
	}
	meta, ok := ctx.Value(execMetaContextKey{}).(ExecMeta)
	return meta, ok
}
