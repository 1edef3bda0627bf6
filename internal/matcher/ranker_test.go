package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-sync-srv/internal/models"
)

func TestRank_AcceptsEditionVariant(t *testing.T) {
	track := models.LocalTrack{Title: "Caruso", Artist: "Fiorella Mannoia", Album: "A te (Special Edition)", PlaylistID: "pl-1"}
	cands := []models.RemoteCandidate{
		{Title: "Caruso", Artist: "Fiorella Mannoia", Album: "A te", RemoteID: "id123"},
	}

	got, ok := Rank(track, cands, RankOptions{Weights: models.DefaultWeights(), Threshold: 0.5})
	require.True(t, ok)
	assert.Equal(t, "id123", got.Candidate.RemoteID)
	assert.Equal(t, 1.0, got.Score.Song)
	assert.Equal(t, 1.0, got.Score.Artist)
	assert.Less(t, got.Score.Album, 1.0)
	assert.GreaterOrEqual(t, got.Score.Total, 0.5)
}

func TestRank_Rejects(t *testing.T) {
	track := models.LocalTrack{Title: "Caruso", Artist: "Fiorella Mannoia", Album: "A te (Special Edition)", PlaylistID: "pl-1"}

	t.Run("no candidates", func(t *testing.T) {
		_, ok := Rank(track, nil, DefaultRankOptions())
		assert.False(t, ok)
	})

	t.Run("below threshold keeps best for reporting", func(t *testing.T) {
		cands := []models.RemoteCandidate{
			{Title: "Caruso", Artist: "Fiorella Mannoia", Album: "A te", RemoteID: "id123"},
		}
		got, ok := Rank(track, cands, RankOptions{Weights: models.DefaultWeights(), Threshold: 0.99})
		assert.False(t, ok)
		assert.Equal(t, "id123", got.Candidate.RemoteID)
	})

	t.Run("unrelated candidates", func(t *testing.T) {
		cands := []models.RemoteCandidate{
			{Title: "Thunderstruck", Artist: "AC/DC", Album: "The Razors Edge", RemoteID: "x"},
			{Title: "Hallelujah", Artist: "Jeff Buckley", Album: "Grace", RemoteID: "y"},
		}
		_, ok := Rank(track, cands, DefaultRankOptions())
		assert.False(t, ok)
	})
}

func TestRank_PicksHighestTotal(t *testing.T) {
	track := models.LocalTrack{Title: "Heroes", Artist: "David Bowie", Album: "Heroes", PlaylistID: "pl-1"}
	cands := []models.RemoteCandidate{
		{Title: "Heroes (Live)", Artist: "David Bowie", Album: "Stage", RemoteID: "live"},
		{Title: "Heroes - 2017 Remaster", Artist: "David Bowie", Album: "Heroes (2017 Remaster)", RemoteID: "remaster"},
		{Title: "Heroes", Artist: "David Bowie", Album: "Heroes", RemoteID: "original"},
	}
	got, ok := Rank(track, cands, DefaultRankOptions())
	require.True(t, ok)
	assert.Equal(t, "original", got.Candidate.RemoteID)
	assert.Equal(t, 2, got.Index)
}

func TestRank_Deterministic(t *testing.T) {
	track := models.LocalTrack{Title: "Hello", Artist: "Adele", Album: "25", PlaylistID: "pl-1"}
	cands := []models.RemoteCandidate{
		{Title: "Hello", Artist: "Adele", Album: "25", RemoteID: "a"},
		{Title: "Hello", Artist: "Adele", Album: "25", RemoteID: "b"},
		{Title: "Hello", Artist: "Lionel Richie", Album: "Can't Slow Down", RemoteID: "c"},
	}

	first, ok := Rank(track, cands, DefaultRankOptions())
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, _ := Rank(track, cands, DefaultRankOptions())
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "a", first.Candidate.RemoteID, "equal scores resolve to the earlier candidate")
}

func TestBetter_TieBreaks(t *testing.T) {
	base := models.MatchScore{Song: 0.8, Artist: 0.8, Album: 0.8, Total: 0.8}

	higherSong := Match{Score: models.MatchScore{Song: 0.9, Artist: 0.7, Album: 0.8, Total: 0.8}, Index: 1}
	assert.True(t, better(higherSong, Match{Score: base, Index: 0}))

	higherArtist := Match{Score: models.MatchScore{Song: 0.8, Artist: 0.9, Album: 0.6, Total: 0.8}, Index: 1}
	assert.True(t, better(higherArtist, Match{Score: base, Index: 0}))

	assert.False(t, better(Match{Score: base, Index: 3}, Match{Score: base, Index: 2}))
	assert.True(t, better(Match{Score: base, Index: 2}, Match{Score: base, Index: 3}))
}

func TestScoreCandidate_MissingLocalAlbumReweights(t *testing.T) {
	track := models.LocalTrack{Title: "Song", Artist: "Artist", PlaylistID: "pl-1"}
	cand := models.RemoteCandidate{Title: "Song", Artist: "Artist", Album: "Some Album", RemoteID: "r"}

	got := ScoreCandidate(track, cand, models.DefaultWeights())
	assert.Equal(t, 0.0, got.Album)
	assert.InDelta(t, 1.0, got.Total, 1e-9)
}

func TestScoreCandidate_TitleFeaturingCountsAsArtist(t *testing.T) {
	track := models.LocalTrack{Title: "Stay (feat. Justin Bieber)", Artist: "The Kid LAROI", PlaylistID: "pl-1"}
	cand := models.RemoteCandidate{Title: "Stay", Artist: "The Kid LAROI, Justin Bieber", RemoteID: "r"}

	got := ScoreCandidate(track, cand, models.DefaultWeights())
	assert.Equal(t, 1.0, got.Song)
	assert.InDelta(t, 1.0, got.Artist, 1e-9)
}

func TestScoreCandidate_EmptyTitleScoresZero(t *testing.T) {
	track := models.LocalTrack{Title: "", Artist: "Adele", Album: "25", PlaylistID: "pl-1"}
	cand := models.RemoteCandidate{Title: "Hello", Artist: "Adele", Album: "25", RemoteID: "r"}

	got := ScoreCandidate(track, cand, models.DefaultWeights())
	assert.Equal(t, 0.0, got.Song)
}

func TestRank_DoesNotMutateCandidates(t *testing.T) {
	track := models.LocalTrack{Title: "Hello", Artist: "Adele", PlaylistID: "pl-1"}
	cands := []models.RemoteCandidate{
		{Title: "Hello (Live)", Artist: "Adele & Friends", Album: "Live", RemoteID: "a"},
	}
	before := append([]models.RemoteCandidate(nil), cands...)

	Rank(track, cands, DefaultRankOptions())
	assert.Equal(t, before, cands)
}

func TestThresholdForMode(t *testing.T) {
	assert.Equal(t, 0.85, ThresholdForMode(ModeStrict))
	assert.Equal(t, 0.85, ThresholdForMode("STRICT"))
	assert.Equal(t, 0.6, ThresholdForMode(ModeLenient))
	assert.Equal(t, 0.6, ThresholdForMode("whatever"))

	override := 0.7
	assert.Equal(t, 0.7, OptionsForMode(ModeStrict, models.DefaultWeights(), &override).Threshold)
	assert.Equal(t, 0.85, OptionsForMode(ModeStrict, models.DefaultWeights(), nil).Threshold)

	zero := 0.0
	assert.Equal(t, 0.0, OptionsForMode(ModeStrict, models.DefaultWeights(), &zero).Threshold)
}
