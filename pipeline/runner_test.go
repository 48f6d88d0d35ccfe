package pipeline

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/executor"
	"github.com/vk/flowtag/internal/ctxlog"
	"github.com/vk/flowtag/record"
	"github.com/zclconf/go-cty/cty"
)

var ctyComparer = cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) })

// wordcountRegistry builds the registry behind the wordcount.hcl definition.
func wordcountRegistry() *Registry {
	ctx := context.Background()
	reg := NewRegistry()

	reg.Register(ctx, "split_words", contract.Apply(
		func(fields []string) iter.Seq[[]string] {
			return func(yield func([]string) bool) {
				for _, w := range strings.Fields(fields[0]) {
					if !yield([]string{w}) {
						return
					}
				}
			}
		},
		contract.Map("word"),
		contract.ExpectsListInput(),
		contract.ExpectsArity(1),
		contract.IsLazyProducer(),
		contract.EmitsListRecords(),
	))

	reg.Register(ctx, "long_words_only", contract.Apply(
		func(m map[string]string) bool { return len(m["word"]) > 3 },
		contract.Filter(),
		contract.ExpectsMappingInput(),
	))

	reg.Register(ctx, "count_words", contract.Apply(
		func(key string, records iter.Seq[*record.Record]) int {
			n := 0
			for range records {
				n++
			}
			return n
		},
		contract.Reduce("count"),
	))

	return reg
}

func TestRunnerExecutesWordcount(t *testing.T) {
	defs, err := NewLoader().LoadBytes(context.Background(), "wordcount.hcl", []byte(wordcountHCL))
	require.NoError(t, err)
	def := defs["wordcount"]

	var input []*record.Record
	for _, line := range []string{"quick brown quick", "hound and brown"} {
		r, err := record.FromGo([]string{"line"}, []any{line})
		require.NoError(t, err)
		input = append(input, r)
	}

	out, err := NewRunner(wordcountRegistry()).Run(context.Background(), def, input)
	require.NoError(t, err)
	require.Len(t, out, 3)

	got := make(map[string]cty.Value, len(out))
	for _, r := range out {
		assert.Equal(t, []string{"word", "count"}, r.Fields())
		word, ok := r.Get("word")
		require.True(t, ok)
		count, ok := r.Get("count")
		require.True(t, ok)
		got[word.AsString()] = count
	}

	want := map[string]cty.Value{
		"quick": cty.NumberIntVal(2),
		"brown": cty.NumberIntVal(2),
		"hound": cty.NumberIntVal(1),
	}
	if diff := cmp.Diff(want, got, ctyComparer); diff != "" {
		t.Fatalf("wordcount output mismatch (-want +got):\n%s", diff)
	}

	// Groups come out in first-seen order.
	first, _ := out[0].Get("word")
	assert.Equal(t, "quick", first.AsString())
}

func TestRunnerFailsFastOnUnknownDescriptor(t *testing.T) {
	def := &Definition{
		Name:   "p",
		Fields: []string{"a"},
		Stages: []*Stage{{Name: "s", Use: "nobody_home"}},
	}

	_, err := NewRunner(NewRegistry()).Run(context.Background(), def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no descriptor registered as "nobody_home"`)
}

func TestRunnerFailsFastOnIncompleteContract(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register(context.Background(), "untagged", contract.Apply(func(r *record.Record) *record.Record {
		calls++
		return r
	}))

	def := &Definition{
		Name:   "p",
		Fields: []string{"a"},
		Stages: []*Stage{{Name: "s", Use: "untagged"}},
	}

	rec, err := record.FromGo([]string{"a"}, []any{1})
	require.NoError(t, err)

	_, err = NewRunner(reg).Run(context.Background(), def, []*record.Record{rec})
	var incomplete *executor.ContractIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "role", incomplete.Missing)
	assert.Zero(t, calls, "no record may be processed before validation passes")
}

func TestRunnerRequiresGroupByOnReduce(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), "agg", contract.Apply(
		func(key cty.Value, records iter.Seq[*record.Record]) int { return 0 },
		contract.Reduce("count"),
	))

	def := &Definition{
		Name:   "p",
		Fields: []string{"a"},
		Stages: []*Stage{{Name: "s", Use: "agg"}},
	}

	_, err := NewRunner(reg).Run(context.Background(), def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reduce stage requires group_by")
}

func TestRunnerRejectsGroupByOnNonReduce(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), "ident", contract.Apply(
		func(r *record.Record) *record.Record { return r },
		contract.Map(),
	))

	def := &Definition{
		Name:   "p",
		Fields: []string{"a"},
		Stages: []*Stage{{Name: "s", Use: "ident", GroupBy: "a"}},
	}

	_, err := NewRunner(reg).Run(context.Background(), def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group_by is only valid on reduce stages")
}

func TestRegistryPanicsOnDuplicateName(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	d := contract.Apply(func(r *record.Record) *record.Record { return r }, contract.Map())
	reg.Register(ctx, "dup", d)

	assert.Panics(t, func() { reg.Register(ctx, "dup", d) })

	got, ok := reg.Lookup("dup")
	require.True(t, ok)
	assert.Same(t, d, got)
}

func TestRegisterLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	reg := NewRegistry()
	reg.Register(ctx, "logged", contract.Apply(
		func(r *record.Record) *record.Record { return r },
		contract.Map(),
	))

	assert.Contains(t, buf.String(), "Registering descriptor.")
	assert.Contains(t, buf.String(), "logged")
}

func TestGroupRecordsPartitionsByField(t *testing.T) {
	mk := func(word string, n int) *record.Record {
		r, err := record.FromGo([]string{"word", "n"}, []any{word, n})
		require.NoError(t, err)
		return r
	}

	groups, err := groupRecords([]*record.Record{
		mk("a", 1), mk("b", 2), mk("a", 3),
	}, "word")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.True(t, cty.StringVal("a").RawEquals(groups[0].Key()))
	assert.Equal(t, 2, groups[0].Len())
	assert.True(t, cty.StringVal("b").RawEquals(groups[1].Key()))
	assert.Equal(t, 1, groups[1].Len())

	_, err = groupRecords([]*record.Record{mk("a", 1)}, "missing")
	require.Error(t, err)
}
