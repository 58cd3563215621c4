package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/builder"
	"github.com/roach88/searchql/internal/criterion"
	logpkg "github.com/roach88/searchql/internal/logger"
	"github.com/roach88/searchql/internal/metrics"
	"github.com/roach88/searchql/internal/query"
)

var acme = []attr.Definition{
	{Name: "status", Type: attr.TypeString, Dynamic: true},
	{Name: "owner", Type: attr.TypeString, Dynamic: true},
	{Name: "size", Type: attr.TypeInteger, Dynamic: true},
	{Name: "score", Type: attr.TypeDouble, Dynamic: true},
	{Name: "title", Type: attr.TypeString},
	{Name: "START_DATE", Type: attr.TypeDate, Namespace: "fragment1", Dynamic: true},
	{Name: "START_DATE", Type: attr.TypeDate, Namespace: "fragment2", Dynamic: true},
}

func newCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	reg := attr.NewRegistry(attr.NewStaticProvider(map[string][]attr.Definition{"acme": acme}))
	return New(reg, opts...)
}

func TestCompile_Scenarios(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		want  criterion.Criterion
	}{
		{
			name:  "boolean query",
			query: "status:active AND NOT owner:bob",
			want: criterion.And{Children: []criterion.Criterion{
				criterion.Equals{Field: "feature.properties.status", Value: criterion.StringValue("active")},
				criterion.Not{Child: criterion.Equals{Field: "feature.properties.owner", Value: criterion.StringValue("bob")}},
			}},
		},
		{
			name:  "prohibition after symbolic operator",
			query: "status:active&&-owner:bob",
			want: criterion.And{Children: []criterion.Criterion{
				criterion.Equals{Field: "feature.properties.status", Value: criterion.StringValue("active")},
				criterion.Not{Child: criterion.Equals{Field: "feature.properties.owner", Value: criterion.StringValue("bob")}},
			}},
		},
		{
			name:  "empty bound range",
			query: "size:[10 TO]",
			want: criterion.Between{
				Field:          "feature.properties.size",
				Lower:          criterion.Int32(10),
				LowerInclusive: true,
				UpperInclusive: true,
			},
		},
		{
			name:  "double range",
			query: "score:{1.5 TO 3.0]",
			want: criterion.Between{
				Field:          "feature.properties.score",
				Lower:          criterion.Float64(1.5),
				Upper:          criterion.Float64(3.0),
				UpperInclusive: true,
			},
		},
		{
			name:  "empty query",
			query: "",
			want:  criterion.All{},
		},
		{
			name:  "qualified name",
			query: `fragment2.START_DATE:"2024-05-01"`,
			want: criterion.Equals{
				Field: "feature.properties.fragment2.START_DATE",
				Value: mustDate(t, "2024-05-01"),
			},
		},
		{
			name:  "wildcard or",
			query: "title:dun* OR -status:draft",
			want: criterion.And{Children: []criterion.Criterion{
				criterion.Pattern{Field: "feature.title", Pattern: "dun*"},
				criterion.Not{Child: criterion.Equals{Field: "feature.properties.status", Value: criterion.StringValue("draft")}},
			}},
		},
	}

	c := newCompiler(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Compile(context.Background(), "acme", tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func mustDate(t *testing.T, s string) criterion.DateValue {
	t.Helper()
	d, err := criterion.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestCompile_DefaultField(t *testing.T) {
	c := newCompiler(t, WithDefaultField("title"))
	got, err := c.Compile(context.Background(), "acme", "dune")
	require.NoError(t, err)
	assert.Equal(t, criterion.Equals{Field: "feature.title", Value: criterion.StringValue("dune")}, got)
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		stage Stage
		check func(error) bool
	}{
		{"syntax", "status:(active", StageParse, query.IsParseError},
		{"numeric bound", "size:[1.5 TO 3]", StageParse, query.IsParseError},
		{"ambiguous bare name", "START_DATE:2024-01-01", StageBuild, builder.IsUnknownAttribute},
		{"unknown attribute", "colour:red", StageBuild, builder.IsUnknownAttribute},
		{"type mismatch", "size:large", StageBuild, builder.IsTypeMismatch},
		{"fuzzy", "title:dune~", StageBuild, builder.IsUnsupported},
		{"empty group", "()", StageBuild, builder.IsEmptyGroup},
		{"empty range", "title:[* TO *]", StageBuild, builder.IsEmptyRange},
	}

	c := newCompiler(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Compile(context.Background(), "acme", tc.query)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, tc.check(err), "unexpected error: %v", err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.stage, ce.Stage)
			assert.Equal(t, "acme", ce.Tenant)
			assert.Equal(t, tc.query, ce.Query)
		})
	}
}

type failingProvider struct{ err error }

func (p failingProvider) ListAttributes(context.Context, string) ([]attr.Definition, error) {
	return nil, p.err
}

func TestCompile_SnapshotFailureIsNotCompileError(t *testing.T) {
	boom := errors.New("catalog offline")
	c := New(attr.NewRegistry(failingProvider{err: boom}))

	_, err := c.Compile(context.Background(), "acme", "status:active")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsCompileError(err))
}

func TestCompile_UnknownTenantHasNoAttributes(t *testing.T) {
	c := newCompiler(t)

	got, err := c.Compile(context.Background(), "globex", "*:*")
	require.NoError(t, err)
	assert.Equal(t, criterion.All{}, got)

	_, err = c.Compile(context.Background(), "globex", "status:active")
	assert.True(t, builder.IsUnknownAttribute(err))
}

func TestCompile_SeesCatalogChanges(t *testing.T) {
	provider := attr.NewStaticProvider(map[string][]attr.Definition{"acme": acme})
	reg := attr.NewRegistry(provider)
	c := New(reg)
	ctx := context.Background()

	_, err := c.Compile(ctx, "acme", "colour:red")
	require.True(t, builder.IsUnknownAttribute(err))

	provider.Set("acme", append(append([]attr.Definition(nil), acme...),
		attr.Definition{Name: "colour", Type: attr.TypeString, Dynamic: true}))
	require.NoError(t, reg.HandleEvent(ctx, attr.ChangeEvent{Tenant: "acme", Kind: attr.EventCreated}))

	got, err := c.Compile(ctx, "acme", "colour:red")
	require.NoError(t, err)
	assert.Equal(t, criterion.Equals{Field: "feature.properties.colour", Value: criterion.StringValue("red")}, got)
}

func TestCompileResult(t *testing.T) {
	c := newCompiler(t)
	res, err := c.CompileResult(context.Background(), "acme", "size:3")
	require.NoError(t, err)

	assert.Equal(t, query.Field{Field: "size", Value: "3"}, res.AST)
	assert.Equal(t, criterion.NumberMatch{Field: "feature.properties.size", Value: criterion.Int32(3)}, res.Criterion)
	assert.Equal(t, "acme", res.Snapshot.Tenant)
}

func TestCompile_Metrics(t *testing.T) {
	m := metrics.New("", prometheus.NewRegistry())
	c := newCompiler(t, WithMetrics(m))
	ctx := context.Background()

	_, _ = c.Compile(ctx, "acme", "status:active")
	_, _ = c.Compile(ctx, "acme", "status:(")
	_, _ = c.Compile(ctx, "acme", "colour:red")
	_, _ = c.Compile(ctx, "acme", "title:x~")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompileTotal.WithLabelValues(metrics.OutcomeOK, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompileTotal.WithLabelValues(metrics.OutcomeError, "parse")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CompileTotal.WithLabelValues(metrics.OutcomeError, "build")))
}

func TestCompile_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newCompiler(t, WithLogger(zap.New(core)))

	_, err := c.Compile(context.Background(), "acme", "status:active")
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), "acme", "colour:red")
	require.Error(t, err)

	compiled := logs.FilterMessage("query compiled").All()
	require.Len(t, compiled, 1)
	assert.Equal(t, "acme", compiled[0].ContextMap()["tenant"])

	rejected := logs.FilterMessage("query rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "build", rejected[0].ContextMap()["stage"])
}

func TestCompile_LogsThroughContextLogger(t *testing.T) {
	configured, configuredLogs := observer.New(zapcore.DebugLevel)
	scoped, scopedLogs := observer.New(zapcore.DebugLevel)
	c := newCompiler(t, WithLogger(zap.New(configured)))

	ctx := logpkg.ContextWithLogger(context.Background(), zap.New(scoped).With(zap.String("request_id", "r1")))
	_, err := c.Compile(ctx, "acme", "status:active")
	require.NoError(t, err)
	_, err = c.Compile(ctx, "acme", "status:(")
	require.Error(t, err)

	assert.Equal(t, 0, configuredLogs.Len())
	require.Equal(t, 2, scopedLogs.Len())
	assert.Equal(t, "r1", scopedLogs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "parse", scopedLogs.All()[1].ContextMap()["stage"])
}

func TestCompileError_Error(t *testing.T) {
	_, err := newCompiler(t).Compile(context.Background(), "acme", "colour:red")
	assert.EqualError(t, err, `compile build: UNKNOWN_ATTRIBUTE: unknown attribute "colour"`)
}

func TestCode(t *testing.T) {
	c := New(attr.NewRegistry(attr.NewStaticProvider(map[string][]attr.Definition{
		"acme": {{Name: "size", Type: attr.TypeInteger, Dynamic: true}},
	})))
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"size:(", CodeParseError},
		{"nope:1", string(builder.ErrCodeUnknownAttribute)},
		{"size:big", string(builder.ErrCodeTypeMismatch)},
		{"size:1~", string(builder.ErrCodeUnsupported)},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := c.Compile(ctx, "acme", tt.query)
			require.Error(t, err)
			assert.Equal(t, tt.want, Code(err))
		})
	}

	assert.Equal(t, "", Code(errors.New("other")))
	assert.Equal(t, "", Code(nil))
}

func FuzzCompile(f *testing.F) {
	for _, seed := range []string{
		"status:active AND NOT owner:bob",
		"size:[10 TO]",
		"score:{1.5 TO 3.0]",
		"START_DATE:2024-01-01",
		"status:active&&-owner:bob",
		"title:alpha~",
		"size:[* TO *]",
		"()",
	} {
		f.Add(seed)
	}

	c := New(attr.NewRegistry(attr.NewStaticProvider(map[string][]attr.Definition{"acme": acme})))
	ctx := context.Background()

	f.Fuzz(func(t *testing.T, raw string) {
		crit, err := c.Compile(ctx, "acme", raw)
		if err != nil {
			assert.True(t, IsCompileError(err), "unexpected error type: %v", err)
			assert.NotEmpty(t, Code(err))
			return
		}
		require.NotNil(t, crit)
		_, err = criterion.MarshalCanonical(crit)
		assert.NoError(t, err)
	})
}
