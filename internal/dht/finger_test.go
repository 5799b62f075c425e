package dht

import (
	"math/big"
	"sort"
	"testing"
)

// referenceFingerEntry independently recomputes which member covers
// target, by sorting members and, for every member, deriving its
// arc-inclusive range from its ring predecessor — the same rule
// rebuildFingerTableEntries uses, but without its rotate-by-self
// bookkeeping. Since arc-inclusive ranges tile the ring disjointly,
// the match found this way must agree with production regardless of
// where the scan starts.
func referenceFingerEntry(members []*RemoteNode, target *big.Int) *RemoteNode {
	sorted := make([]*RemoteNode, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.Cmp(sorted[j].ID) < 0 })

	n := len(sorted)
	for i, m := range sorted {
		prev := sorted[(i-1+n)%n]
		start := succID(prev.ID)
		if InRange(start, m.ID, target) {
			return m
		}
	}
	return nil
}

func TestRebuildFingerTableEntriesEmpty(t *testing.T) {
	table := rebuildFingerTableEntries(HashID("self"), nil)
	for j, f := range table {
		if f != nil {
			t.Fatalf("entry %d should be nil for an empty member list", j)
		}
	}
}

func TestRebuildFingerTableEntriesSingleMember(t *testing.T) {
	self := HashID("solo")
	table := rebuildFingerTableEntries(self, []string{"http://solo:8080"})
	for j, f := range table {
		if f == nil || f.URL != "http://solo:8080" {
			t.Fatalf("entry %d: expected the sole member, got %v", j, f)
		}
	}
}

func TestRebuildFingerTableEntriesMatchesReference(t *testing.T) {
	urls := []string{
		"http://node-a:8080",
		"http://node-b:8080",
		"http://node-c:8080",
		"http://node-d:8080",
		"http://node-e:8080",
	}
	self := HashID("http://node-a:8080")
	table := rebuildFingerTableEntries(self, urls)

	members := make([]*RemoteNode, len(urls))
	for i, u := range urls {
		members[i] = newRemoteNode(u)
	}

	for j := 0; j < IDBits; j++ {
		target := idPlusPow2(self, j)
		want := referenceFingerEntry(members, target)
		got := table[j]
		if got == nil || want == nil || got.URL != want.URL {
			t.Fatalf("entry %d: got %v, want %v (target %s)", j, got, want, target)
		}
	}
}

func TestRebuildFingerTableEntriesEntryZeroIsSuccessor(t *testing.T) {
	urls := []string{
		"http://n1:8080",
		"http://n2:8080",
		"http://n3:8080",
	}
	self := HashID("http://n1:8080")
	table := rebuildFingerTableEntries(self, urls)

	// entry 0 covers (self+1, ...], i.e. whichever member owns the arc
	// immediately after self — the ring successor.
	target := idPlusPow2(self, 0)
	members := make([]*RemoteNode, len(urls))
	for i, u := range urls {
		members[i] = newRemoteNode(u)
	}
	want := referenceFingerEntry(members, target)
	if table[0] == nil || table[0].URL != want.URL {
		t.Fatalf("entry 0 = %v, want successor %v", table[0], want)
	}
}

func TestRebuildFingerTableEntriesDedupesURLs(t *testing.T) {
	urls := []string{"http://a:8080", "http://a:8080", "http://b:8080"}
	self := HashID("http://a:8080")
	table := rebuildFingerTableEntries(self, urls)
	seen := map[string]bool{}
	for _, f := range table {
		if f != nil {
			seen[f.URL] = true
		}
	}
	if len(seen) > 2 {
		t.Fatalf("expected at most 2 distinct URLs in the table, got %v", seen)
	}
}
