package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type matchFixture struct {
	src    string
	dst    string
	hasher *countingHasher
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	return &matchFixture{src: t.TempDir(), dst: t.TempDir(), hasher: newCountingHasher()}
}

func (f *matchFixture) match(t *testing.T) *MatchResult {
	t.Helper()
	fs := newTestFileSystem()
	source, err := IndexTree(context.Background(), fs, f.src, nil)
	if err != nil {
		t.Fatalf("index source: %v", err)
	}
	dest, err := IndexTree(context.Background(), fs, f.dst, nil)
	if err != nil {
		t.Fatalf("index dest: %v", err)
	}
	result, err := MatchTrees(context.Background(), f.hasher, source, dest, MatchOptions{Workers: 3})
	if err != nil {
		t.Fatalf("MatchTrees: %v", err)
	}
	return result
}

func plannedNames(result *MatchResult) []string {
	names := make([]string, 0, result.Plan.Len())
	for _, e := range result.Plan.Entries {
		names = append(names, filepath.Base(e.Path))
	}
	return names
}

func TestMatchTrees_EmptyDestinationNeedsNoHashing(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a.bin", "0123456789ab")

	result := f.match(t)
	if got := plannedNames(result); len(got) != 1 || got[0] != "a.bin" {
		t.Fatalf("expected [a.bin], got %v", got)
	}
	if f.hasher.total() != 0 {
		t.Fatalf("expected zero hashes, got %d", f.hasher.total())
	}
	entry := result.Plan.Entries[0]
	if entry.Reason != ReasonNoSizeMatch || entry.Digest != "" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestMatchTrees_SizeMismatchSkipsHashing(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a.txt", "short")
	writeTestFile(t, f.dst, "b.txt", "a bit longer")

	result := f.match(t)
	if result.Plan.Len() != 1 || result.Plan.Entries[0].Reason != ReasonNoSizeMatch {
		t.Fatalf("unexpected plan: %+v", result.Plan)
	}
	if f.hasher.total() != 0 {
		t.Fatalf("expected zero hashes, got %d", f.hasher.total())
	}
}

func TestMatchTrees_IdenticalContentUnderAnotherName(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "photos/2020/img.jpg", "same bytes")
	writeTestFile(t, f.dst, "old/renamed.jpg", "same bytes")

	result := f.match(t)
	if result.Plan.Len() != 0 {
		t.Fatalf("expected empty plan, got %v", plannedNames(result))
	}
	if result.Matched != 1 {
		t.Fatalf("expected 1 match, got %d", result.Matched)
	}
}

func TestMatchTrees_SameSizeDifferentContent(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a.txt", "aaaa")
	writeTestFile(t, f.dst, "a.txt", "bbbb")

	result := f.match(t)
	if result.Plan.Len() != 1 {
		t.Fatalf("expected one planned file, got %v", plannedNames(result))
	}
	entry := result.Plan.Entries[0]
	if entry.Reason != ReasonContentDiffers || entry.Digest == "" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestMatchTrees_Multiset(t *testing.T) {
	tests := []struct {
		name        string
		sources     int
		dests       int
		wantPlanned int
	}{
		{name: "two sources one dest", sources: 2, dests: 1, wantPlanned: 1},
		{name: "two sources two dests", sources: 2, dests: 2, wantPlanned: 0},
		{name: "five sources two dests", sources: 5, dests: 2, wantPlanned: 3},
		{name: "one source three dests", sources: 1, dests: 3, wantPlanned: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMatchFixture(t)
			for i := 0; i < tt.sources; i++ {
				writeTestFile(t, f.src, "s"+strings.Repeat("x", i)+".dat", "identical")
			}
			for i := 0; i < tt.dests; i++ {
				writeTestFile(t, f.dst, "d"+strings.Repeat("x", i)+".dat", "identical")
			}
			result := f.match(t)
			if result.Plan.Len() != tt.wantPlanned {
				t.Fatalf("expected %d planned, got %d", tt.wantPlanned, result.Plan.Len())
			}
			if result.Matched+result.Plan.Len() != tt.sources {
				t.Fatalf("matched %d + planned %d != sources %d", result.Matched, result.Plan.Len(), tt.sources)
			}
		})
	}
}

func TestMatchTrees_ZeroByteFiles(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "e1", "")
	writeTestFile(t, f.src, "e2", "")
	writeTestFile(t, f.dst, "e", "")

	result := f.match(t)
	if result.Plan.Len() != 1 || result.Matched != 1 {
		t.Fatalf("expected 1 planned and 1 matched, got %d/%d", result.Plan.Len(), result.Matched)
	}
}

func TestMatchTrees_MixedBucket(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a", "AAAA")
	writeTestFile(t, f.src, "b", "BBBB")
	writeTestFile(t, f.src, "c", "AAAA")
	writeTestFile(t, f.dst, "x", "AAAA")
	writeTestFile(t, f.dst, "y", "CCCC")

	result := f.match(t)
	if result.Plan.Len() != 2 || result.Matched != 1 {
		t.Fatalf("expected 2 planned and 1 matched, got %v", plannedNames(result))
	}
	names := plannedNames(result)
	if names[0] == "a" && names[1] == "c" {
		t.Fatalf("both copies of AAAA planned while one is in the destination: %v", names)
	}
}

func TestMatchTrees_HashesEachFileOnce(t *testing.T) {
	f := newMatchFixture(t)
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		paths = append(paths, writeTestFile(t, f.src, name, "same"))
		paths = append(paths, writeTestFile(t, f.dst, name, "diff"))
	}

	result := f.match(t)
	for _, p := range paths {
		if got := f.hasher.count(p); got != 1 {
			t.Fatalf("%s hashed %d times", p, got)
		}
	}
	if result.Hashed != len(paths) {
		t.Fatalf("expected %d hashed, got %d", len(paths), result.Hashed)
	}
}

func TestMatchTrees_SourceHashErrorIsPlanned(t *testing.T) {
	f := newMatchFixture(t)
	bad := writeTestFile(t, f.src, "bad.txt", "1234")
	writeTestFile(t, f.dst, "same.txt", "1234")
	f.hasher.errs[bad] = os.ErrPermission

	result := f.match(t)
	if result.Plan.Len() != 1 || result.Plan.Entries[0].Reason != ReasonHashError {
		t.Fatalf("expected hash-error entry, got %+v", result.Plan)
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != bad {
		t.Fatalf("expected one hash error for %s, got %v", bad, result.Errors)
	}
	if !errors.Is(result.Errors[0], os.ErrPermission) {
		t.Fatalf("hash error should unwrap to cause: %v", result.Errors[0])
	}
}

func TestMatchTrees_DestHashErrorIsUnavailable(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a.txt", "1234")
	bad := writeTestFile(t, f.dst, "a.txt", "1234")
	f.hasher.errs[bad] = os.ErrPermission

	result := f.match(t)
	if result.Plan.Len() != 1 || result.Plan.Entries[0].Reason != ReasonContentDiffers {
		t.Fatalf("expected content-differs entry, got %+v", result.Plan)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one hash error, got %v", result.Errors)
	}
}

func TestMatchTrees_PlanOrderFollowsSourceBuckets(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a", "1")
	writeTestFile(t, f.src, "b", "22")
	writeTestFile(t, f.src, "c", "1")

	result := f.match(t)
	got := plannedNames(result)
	want := []string{"a", "c", "b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMatchTrees_Cancelled(t *testing.T) {
	f := newMatchFixture(t)
	for _, name := range []string{"a", "b", "c", "d"} {
		writeTestFile(t, f.src, name, "xxxx")
		writeTestFile(t, f.dst, name, "yyyy")
	}
	fs := newTestFileSystem()
	source, err := IndexTree(context.Background(), fs, f.src, nil)
	if err != nil {
		t.Fatalf("index source: %v", err)
	}
	dest, err := IndexTree(context.Background(), fs, f.dst, nil)
	if err != nil {
		t.Fatalf("index dest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.hasher.cancel = cancel
	_, err = MatchTrees(ctx, f.hasher, source, dest, MatchOptions{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.hasher.total() >= 8 {
		t.Fatalf("expected hashing to stop early, got %d calls", f.hasher.total())
	}
}

func TestMatchTrees_ReportsProgress(t *testing.T) {
	f := newMatchFixture(t)
	writeTestFile(t, f.src, "a", "xx")
	writeTestFile(t, f.dst, "b", "yy")
	fs := newTestFileSystem()
	source, _ := IndexTree(context.Background(), fs, f.src, nil)
	dest, _ := IndexTree(context.Background(), fs, f.dst, nil)

	progress := newRecordingProgress()
	if _, err := MatchTrees(context.Background(), f.hasher, source, dest, MatchOptions{Progress: progress}); err != nil {
		t.Fatalf("MatchTrees: %v", err)
	}
	if progress.starts["hash"] != 2 || progress.incs["hash"] != 2 || !progress.done["hash"] {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestHashEntries_KeepsEntryAndOrdersFailures(t *testing.T) {
	root := t.TempDir()
	hasher := newCountingHasher()
	var entries []ScannedEntry
	for _, name := range []string{"a", "b", "c", "d"} {
		p := writeTestFile(t, root, name, "data-"+name)
		entries = append(entries, ScannedEntry{Path: p, Size: 6})
	}
	hasher.errs[entries[3].Path] = os.ErrPermission
	hasher.errs[entries[1].Path] = os.ErrNotExist

	hashed, failed, err := hashEntries(context.Background(), hasher, entries, MatchOptions{Workers: 4})
	if err != nil {
		t.Fatalf("hashEntries: %v", err)
	}
	if len(hashed) != 2 {
		t.Fatalf("expected 2 hashed entries, got %d", len(hashed))
	}
	he, ok := hashed[entries[0].Path]
	if !ok || he.Size != 6 || he.Digest == "" {
		t.Fatalf("unexpected hashed entry: %+v", he)
	}
	if len(failed) != 2 || failed[0].Path != entries[1].Path || failed[1].Path != entries[3].Path {
		t.Fatalf("expected failures in input order, got %+v", failed)
	}
	if !errors.Is(failed[1], os.ErrPermission) {
		t.Fatalf("expected wrapped permission error, got %v", failed[1])
	}
}
