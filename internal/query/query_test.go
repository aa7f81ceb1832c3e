package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

func fixtures() []model.ServerRecord {
	return []model.ServerRecord{
		{ID: 1, Name: "web-1", Host: "10.0.0.5", Protocol: protocol.SSH, Group: "prod", Tags: []string{"web"}},
		{ID: 2, Name: "desk", Host: "10.0.1.9", Protocol: protocol.RDP, Group: "office", Tags: []string{"windows"}},
		{ID: 3, Name: "Backup", Host: "nas.lan", Protocol: protocol.SFTP, Group: "", Tags: []string{"storage", "web"}},
		{ID: 4, Name: "web-2", Host: "10.0.0.6", Protocol: protocol.SSH, Group: "Prod", Tags: []string{"web"}},
	}
}

func ids(records []model.ServerRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestEmptyParamsReturnsAllInGroupOrder(t *testing.T) {
	got := Apply(fixtures(), Params{})
	assert.Equal(t, []int64{3, 2, 1, 4}, ids(got))
}

func TestTextMatchesNameHostTagAndGroup(t *testing.T) {
	assert.Equal(t, []int64{2}, ids(Apply(fixtures(), Params{Text: "DESK"})))
	assert.Equal(t, []int64{3}, ids(Apply(fixtures(), Params{Text: "nas"})))
	assert.Equal(t, []int64{3}, ids(Apply(fixtures(), Params{Text: "stor"})))
	assert.Equal(t, []int64{2}, ids(Apply(fixtures(), Params{Text: "offi"})))
}

func TestGroupIsCaseInsensitiveExact(t *testing.T) {
	got := Apply(fixtures(), Params{Group: "PROD"})
	assert.Equal(t, []int64{1, 4}, ids(got))
	assert.Empty(t, Apply(fixtures(), Params{Group: "pro"}))
}

func TestTagsRequireAll(t *testing.T) {
	assert.Equal(t, []int64{3}, ids(Apply(fixtures(), Params{Tags: []string{"web", "storage"}})))
	assert.Empty(t, Apply(fixtures(), Params{Tags: []string{"missing"}}))
}

func TestCriteriaCompose(t *testing.T) {
	got := Apply(fixtures(), Params{Text: "web", Group: "prod", Sort: SortName})
	assert.Equal(t, []int64{1, 4}, ids(got))
}

func TestTiesBreakOnAscendingIDInBothDirections(t *testing.T) {
	records := []model.ServerRecord{
		{ID: 9, Name: "same"}, {ID: 2, Name: "same"}, {ID: 5, Name: "other"},
	}
	assert.Equal(t, []int64{5, 2, 9}, ids(Apply(records, Params{Sort: SortName})))
	assert.Equal(t, []int64{2, 9, 5}, ids(Apply(records, Params{Sort: SortName, Descending: true})))
}

func TestApplyIsDeterministicAndDoesNotMutate(t *testing.T) {
	in := fixtures()
	first := Apply(in, Params{Sort: SortProtocol})
	second := Apply(in, Params{Sort: SortProtocol})
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(in))

	first[0].Tags[0] = "mutated"
	assert.NotEqual(t, "mutated", in[first[0].ID-1].Tags[0])
}

func TestSortByPortUsesEffectivePort(t *testing.T) {
	records := []model.ServerRecord{
		{ID: 1, Protocol: protocol.RDP},
		{ID: 2, Protocol: protocol.SSH, Port: 2222},
		{ID: 3, Protocol: protocol.FTP},
	}
	assert.Equal(t, []int64{3, 2, 1}, ids(Apply(records, Params{Sort: SortPort})))
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortGroup, k)

	k, err = ParseSortKey("Host")
	require.NoError(t, err)
	assert.Equal(t, SortHost, k)

	_, err = ParseSortKey("latency")
	assert.Error(t, err)
}

func TestSortKeyNextCycles(t *testing.T) {
	k := SortGroup
	for range SortKeys() {
		k = k.Next()
	}
	assert.Equal(t, SortGroup, k)
}

func TestGroups(t *testing.T) {
	assert.Equal(t, []string{"office", "prod"}, Groups(fixtures()))
}

func TestProtocolCounts(t *testing.T) {
	counts := ProtocolCounts(fixtures())
	assert.Equal(t, 2, counts[protocol.SSH])
	assert.Equal(t, 1, counts[protocol.RDP])
}
