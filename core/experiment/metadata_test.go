package experiment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flow-trainer/core/models"
	"flow-trainer/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func fixedRevision(rev string) RevisionFunc {
	return func(context.Context) (string, error) { return rev, nil }
}

func failingRevision(context.Context) (string, error) {
	return "", errors.New("not a git repository")
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)}
}

func TestDerivePath(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	got := DerivePath("tank", ts, id)
	require.Equal(t, "tank_2024-03-09_14-05-07_0f8fad5bd9cb469fa16570867728950e", got)
	require.Equal(t, got, DerivePath("tank", ts, id))

	other := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	require.NotEqual(t, got, DerivePath("tank", ts, other))
}

func TestDerivePathDistinctRunIDs(t *testing.T) {
	ts := time.Now()
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		p := DerivePath("flow", ts, uuid.New())
		_, dup := seen[p]
		require.False(t, dup)
		seen[p] = struct{}{}
	}
}

func TestNewWithoutOutputDir(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	m, err := New(context.Background(), opts, "flowtrain train", Environment{
		OutputRoot: t.TempDir(),
		Revision:   fixedRevision("abc123"),
	})
	require.NoError(t, err)

	require.False(t, m.SavingEnabled())
	require.Empty(t, m.Path())
	require.Empty(t, m.FileName())
	require.Equal(t, "abc123", m.Revision())

	require.NoError(t, m.Persist(models.ModelState{"w": {1}}))
	require.Nil(t, m.SavedAt())
}

func TestNewCreatesOutputDir(t *testing.T) {
	root := t.TempDir()
	opts := models.DefaultTrainingOptions()
	opts.SaveModel = "tank"
	c := newClock()

	m, err := New(context.Background(), opts, "flowtrain train --save_model tank", Environment{
		OutputRoot: root,
		Revision:   fixedRevision("abc123"),
		Now:        c.Now,
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "tank"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.Equal(t, filepath.Join(root, "tank"), m.OutputDir())
	require.Equal(t, "tank_2024-03-09_14-05-07_"+m.IDHex(), m.FileName())
	require.Equal(t, filepath.Join(root, "tank", m.FileName()+ArtifactExt), m.Path())

	// a second run into the same existing directory
	m2, err := New(context.Background(), opts, "", Environment{OutputRoot: root, Revision: fixedRevision("abc123"), Now: c.Now})
	require.NoError(t, err)
	require.NotEqual(t, m.Path(), m2.Path())
}

func TestNewRevisionFailureDegrades(t *testing.T) {
	m, err := New(context.Background(), models.DefaultTrainingOptions(), "", Environment{Revision: failingRevision})
	require.NoError(t, err)
	require.Equal(t, Unavailable, m.Revision())
}

func TestNewResolvesDataPath(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	opts.LoadData = "data/set.pth"
	m, err := New(context.Background(), opts, "", Environment{Revision: failingRevision})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(m.DataPath()))
	require.True(t, strings.HasSuffix(m.DataPath(), filepath.Join("data", "set.pth")))
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	opts.SaveModel = "flow"
	opts.LearningRate = 0.02
	c := newClock()

	m, err := New(context.Background(), opts, "flowtrain train --lr 0.02", Environment{
		OutputRoot: t.TempDir(),
		Revision:   fixedRevision("deadbeef"),
		Now:        c.Now,
	})
	require.NoError(t, err)

	first := models.ModelState{"w": {0.1, 0.2}, "b": {1}}
	require.NoError(t, m.Persist(first))
	firstSave := *m.SavedAt()

	c.Advance(90 * time.Second)
	second := models.ModelState{"w": {0.3, 0.4}, "b": {2}}
	require.NoError(t, m.Persist(second))
	require.True(t, m.SavedAt().After(firstSave))

	// one file per run
	entries, err := os.ReadDir(m.OutputDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, state, err := Load(m.Path())
	require.NoError(t, err)
	require.Equal(t, second, state)
	require.Equal(t, m.ID(), loaded.ID())
	require.Equal(t, m.CommandLine(), loaded.CommandLine())
	require.Equal(t, m.Options(), loaded.Options())
	require.Equal(t, m.Revision(), loaded.Revision())
	require.Equal(t, m.DataPath(), loaded.DataPath())
	require.Equal(t, m.FileName(), loaded.FileName())
	require.True(t, m.SavedAt().Equal(*loaded.SavedAt()))
	require.True(t, m.CreatedAt().Equal(loaded.CreatedAt()))
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.pth")
	require.NoError(t, storage.WriteCompressedJSON(path, map[string]interface{}{"version": 99}))

	_, _, err := Load(path)
	require.ErrorIs(t, err, ErrUnsupportedBundle)
}

func TestDescribe(t *testing.T) {
	opts := models.DefaultTrainingOptions()
	m, err := New(context.Background(), opts, "flowtrain train", Environment{Revision: failingRevision})
	require.NoError(t, err)

	out := m.Describe()
	require.Contains(t, out, "--- Trained model unavailable")
	require.Contains(t, out, "Timestamp: unavailable")
	require.Contains(t, out, "Git hash: unavailable")
	require.Contains(t, out, "Command line: flowtrain train")
	require.Contains(t, out, "Data: unavailable")

	opts.SaveModel = "tank"
	c := newClock()
	m, err = New(context.Background(), opts, "flowtrain train", Environment{
		OutputRoot: t.TempDir(),
		Revision:   fixedRevision("abc123"),
		Now:        c.Now,
	})
	require.NoError(t, err)
	require.NoError(t, m.Persist(models.ModelState{}))

	out = m.Describe()
	require.Contains(t, out, "--- Trained model "+m.FileName())
	require.Contains(t, out, "Timestamp: "+c.Now().Local().Format("2006/01/02 15:04:05"))
	require.Contains(t, out, "Git hash: abc123")
}

func TestDescribeUsesLocalTime(t *testing.T) {
	previous := time.Local
	time.Local = time.FixedZone("UTC+2", 2*60*60)
	defer func() { time.Local = previous }()

	opts := models.DefaultTrainingOptions()
	opts.SaveModel = "tank"
	c := newClock()
	m, err := New(context.Background(), opts, "flowtrain train", Environment{
		OutputRoot: t.TempDir(),
		Revision:   fixedRevision("abc123"),
		Now:        c.Now,
	})
	require.NoError(t, err)
	require.NoError(t, m.Persist(models.ModelState{}))

	require.Contains(t, m.Describe(), "Timestamp: 2024/03/09 16:05:07")
	// the artifact name keeps the UTC creation time
	require.Contains(t, m.FileName(), "_2024-03-09_14-05-07_")
}
