package policy

import (
	"reflect"
	"testing"

	"github.com/kfimusic/beatstore/models"
)

func TestFilterNames_AllowList(t *testing.T) {
	got := Default().FilterNames([]string{"Song.mp3", "Song.wav", "stems.zip", "notes.txt"})
	want := []string{"stems.zip", "Song.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilterNames_PriorityOrder(t *testing.T) {
	got := Default().FilterNames([]string{"Song.wav", "stems.zip", "Song.zip"})
	want := []string{"stems.zip", "Song.wav", "Song.zip"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilterNames_StableTies(t *testing.T) {
	got := Default().FilterNames([]string{"b.wav", "a.zip", "a.wav", "c.WAV"})
	want := []string{"b.wav", "a.wav", "c.WAV", "a.zip"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAllowed_CaseInsensitive(t *testing.T) {
	p := Default()
	for _, name := range []string{"MASTER.WAV", "Stems.Zip", "x.zip"} {
		if !p.Allowed(name) {
			t.Fatalf("expected %q to be allowed", name)
		}
	}
	for _, name := range []string{"preview.mp3", "cover.png", "wav", ""} {
		if p.Allowed(name) {
			t.Fatalf("expected %q to be excluded", name)
		}
	}
}

func TestRank_BundleIsCaseInsensitive(t *testing.T) {
	if r := Default().Rank("STEMS.ZIP"); r != rankBundle {
		t.Fatalf("expected bundle rank, got %d", r)
	}
}

func TestDeliverable_DropsUnusableEntries(t *testing.T) {
	files := []models.DeliverableFile{
		{Name: "Lucid.mp3", URL: "https://x/1"},
		{Name: "Lucid.wav", URL: "https://x/2"},
		{Name: ".emptyFolderPlaceholder.zip", URL: "https://x/3"},
		{Name: "unsigned.zip"},
		{Name: "stems.zip", URL: "https://x/4"},
	}
	p := Default()

	got := p.Deliverable(files)
	if len(got) != 2 || got[0].Name != "stems.zip" || got[1].Name != "Lucid.wav" {
		t.Fatalf("unexpected deliverable set: %+v", got)
	}

	excluded := p.Excluded(files)
	want := []string{"Lucid.mp3", ".emptyFolderPlaceholder.zip", "unsigned.zip"}
	if !reflect.DeepEqual(excluded, want) {
		t.Fatalf("expected excluded %v, got %v", want, excluded)
	}
	if !p.HasBundle(got) {
		t.Fatalf("expected bundle to be present")
	}
}
