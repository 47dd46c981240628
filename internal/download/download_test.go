package download

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/naip-downloader/internal/box"
	"github.com/handiism/naip-downloader/internal/box/boxtest"
	"github.com/handiism/naip-downloader/internal/config"
	httpclient "github.com/handiism/naip-downloader/internal/http"
	"github.com/handiism/naip-downloader/internal/model"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testSettings(srv *boxtest.Server, outputDir string) *config.Settings {
	s := config.DefaultSettings()
	s.Box.BaseURL = srv.URL
	s.Box.VanityName = boxtest.Vanity
	s.Box.RootFolderID = "root"
	s.HTTP.Timeout = 5 * time.Second
	s.HTTP.MaxRetries = 1
	s.HTTP.RetryCooldown = time.Millisecond
	s.Download.OutputDir = outputDir
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recorder) record(e ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) messages(level ProgressLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func newTestManager(t *testing.T, settings *config.Settings) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m, err := NewManager(settings, zerolog.Nop(), rec.record)
	require.NoError(t, err)
	return m, rec
}

// seedMississippi publishes 2021/MS with one multispectral composite holding
// an archive and a plain file.
func seedMississippi(t *testing.T, srv *boxtest.Server) {
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("y21", "ms21", "MS", 0)
	srv.AddFolder("ms21", "c1", "ms_m_2021", 2)
	srv.AddFile("c1", "101", "m_001.zip", zipBytes(t, map[string]string{"m_001.tif": "raster"}))
	srv.AddFile("c1", "102", "readme.txt", []byte("hello"))
}

func TestManager_DownloadStateYear(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)

	out := t.TempDir()
	m, rec := newTestManager(t, testSettings(srv, out))

	target, err := m.DownloadStateYear(context.Background(), 2021, "ms")
	require.NoError(t, err)

	assert.Equal(t, StageDone, target.Stage)
	assert.Equal(t, "MS", target.State)
	require.Len(t, target.Composites, 1)

	totals := target.Totals()
	assert.Equal(t, 2, totals.Downloaded)
	assert.Equal(t, 1, totals.Extracted)
	assert.Equal(t, 0, totals.FailedCount())
	assert.Greater(t, totals.Bytes, int64(len("hello")))

	dir := filepath.Join(out, "2021", "MS", "ms_m_2021")
	raster, err := os.ReadFile(filepath.Join(dir, "m_001", "m_001.tif"))
	require.NoError(t, err)
	assert.Equal(t, "raster", string(raster))
	assert.NoFileExists(t, filepath.Join(dir, "m_001.zip"))
	assert.FileExists(t, filepath.Join(dir, "readme.txt"))

	assert.ElementsMatch(t, []string{"101", "102"}, srv.Downloads())
	assert.NotEmpty(t, rec.messages(LevelSuccess))

	progress := m.GetProgress()
	assert.Equal(t, int32(2), progress.FilesDone)
	assert.Equal(t, int32(2), progress.FilesTotal)
	assert.Empty(t, progress.CurrentFile)
}

// snapshotTree maps every path under root to its content, or "/" for directories.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			tree[rel] = "/"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func TestManager_SecondRunSkipsExistingFiles(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)

	out := t.TempDir()
	m, _ := newTestManager(t, testSettings(srv, out))

	_, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)
	require.Len(t, srv.Downloads(), 2)
	first := snapshotTree(t, out)

	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	totals := target.Totals()
	assert.Equal(t, 0, totals.Downloaded)
	assert.Equal(t, 2, totals.Skipped)
	assert.Len(t, srv.Downloads(), 2)

	assert.Equal(t, first, snapshotTree(t, out))
	assert.Equal(t, "raster", first[filepath.Join("2021", "MS", "ms_m_2021", "m_001", "m_001.tif")])
}

func TestManager_OverwriteDownloadsAgain(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)

	settings := testSettings(srv, t.TempDir())
	m, _ := newTestManager(t, settings)
	_, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	settings.Download.Overwrite = true
	m, _ = newTestManager(t, settings)
	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	assert.Equal(t, 2, target.Totals().Downloaded)
	assert.Len(t, srv.Downloads(), 4)
}

func TestManager_NoUnzipKeepsArchive(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)

	out := t.TempDir()
	settings := testSettings(srv, out)
	settings.Download.Unzip = false
	m, _ := newTestManager(t, settings)

	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	dir := filepath.Join(out, "2021", "MS", "ms_m_2021")
	assert.FileExists(t, filepath.Join(dir, "m_001.zip"))
	assert.NoDirExists(t, filepath.Join(dir, "m_001"))
	assert.Equal(t, 0, target.Totals().Extracted)
}

func TestManager_CorruptArchiveIsKept(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("y21", "ms21", "MS", 0)
	srv.AddFolder("ms21", "c1", "ms_m_2021", 1)
	srv.AddFile("c1", "101", "bad.zip", []byte("definitely not a zip"))

	out := t.TempDir()
	m, rec := newTestManager(t, testSettings(srv, out))

	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	report := target.Composites[0]
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 0, report.Extracted)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "bad.zip is not a valid zip file, keeping original")

	dir := filepath.Join(out, "2021", "MS", "ms_m_2021")
	assert.FileExists(t, filepath.Join(dir, "bad.zip"))
	assert.NoDirExists(t, filepath.Join(dir, "bad"))
	assert.NotEmpty(t, rec.messages(LevelWarning))
}

func TestManager_FailedFileDoesNotStopFolder(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)
	srv.FailDownload("101", http.StatusForbidden)

	out := t.TempDir()
	m, rec := newTestManager(t, testSettings(srv, out))

	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)

	report := target.Composites[0]
	assert.Equal(t, 1, report.Downloaded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "m_001.zip", report.Failed[0].File.Name)
	assert.ErrorIs(t, report.Failed[0].Err, model.ErrTransport)

	dir := filepath.Join(out, "2021", "MS", "ms_m_2021")
	assert.NoFileExists(t, filepath.Join(dir, "m_001.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "m_001.zip.part"))
	assert.FileExists(t, filepath.Join(dir, "readme.txt"))
	assert.NotEmpty(t, rec.messages(LevelError))
}

func TestManager_TargetNotFound(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedMississippi(t, srv)

	m, rec := newTestManager(t, testSettings(srv, t.TempDir()))

	tests := []struct {
		name  string
		year  int
		state string
		stage Stage
		msg   string
	}{
		{"missing year", 1999, "MS", StageStart, "No folder found for year 1999"},
		{"missing state", 2021, "ND", StageYearResolved, "No folder found for state ND in year 2021"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := m.DownloadStateYear(context.Background(), tt.year, tt.state)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrNotFound)

			var terr *TargetError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.stage, terr.Stage)
			assert.Equal(t, StageAborted, target.Stage)
			assert.True(t, target.NotFound())
			assert.Contains(t, rec.messages(LevelWarning), tt.msg)
		})
	}
	assert.Empty(t, srv.Downloads())
}

func TestManager_EmptyCompositeIsNotListed(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("y21", "ms21", "MS", 0)
	srv.AddFolder("ms21", "c1", "ms_m_2021", 0)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))

	target, err := m.DownloadStateYear(context.Background(), 2021, "MS")
	require.NoError(t, err)
	require.Len(t, target.Composites, 1)
	assert.Equal(t, 0, target.Composites[0].Processed())
	assert.Empty(t, srv.ListingPages("c1"))
}

func TestManager_NoMatchingComposites(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("y21", "nd21", "ND", 0)
	srv.AddFolder("nd21", "c1", "nd_c_2021", 1)
	srv.AddFile("c1", "101", "a.txt", []byte("a"))

	settings := testSettings(srv, t.TempDir())
	settings.Download.RGBOnly = true
	m, rec := newTestManager(t, settings)

	target, err := m.DownloadStateYear(context.Background(), 2021, "ND")
	require.NoError(t, err)
	assert.Equal(t, StageDone, target.Stage)
	assert.Empty(t, target.Composites)
	assert.Contains(t, rec.messages(LevelWarning), "No composite folders found for ND in 2021")
}

func TestManager_CIROnly(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("y21", "nd21", "ND", 0)
	srv.AddFolder("nd21", "cir", "nd_c_2021", 1)
	srv.AddFolder("nd21", "rgb", "nd_n_2021", 1)
	srv.AddFile("cir", "201", "c.txt", []byte("c"))
	srv.AddFile("rgb", "202", "n.txt", []byte("n"))

	out := t.TempDir()
	settings := testSettings(srv, out)
	settings.Download.CIROnly = true
	m, _ := newTestManager(t, settings)

	_, err := m.DownloadStateYear(context.Background(), 2021, "ND")
	require.NoError(t, err)

	assert.Equal(t, []string{"201"}, srv.Downloads())
	assert.FileExists(t, filepath.Join(out, "2021", "ND", "nd_c_2021", "c.txt"))
	assert.NoDirExists(t, filepath.Join(out, "2021", "ND", "nd_n_2021"))
}

func TestNewManager_ConflictingFilters(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Download.CIROnly = true
	settings.Download.RGBOnly = true

	_, err := NewManager(settings, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

// seedTwoYears publishes 2021/{ND, Documentation} and 2020/{MS, ND}.
func seedTwoYears(srv *boxtest.Server) {
	srv.AddFolder("root", "y20", "2020", 0)
	srv.AddFolder("root", "y21", "2021", 0)
	srv.AddFolder("root", "docs", "Documentation", 0)

	srv.AddFolder("y21", "nd21", "ND", 0)
	srv.AddFolder("y21", "doc21", "Documentation", 0)
	srv.AddFolder("nd21", "c-nd21", "nd_m_2021", 1)
	srv.AddFile("c-nd21", "301", "nd21.txt", []byte("nd21"))

	srv.AddFolder("y20", "nd20", "nd", 0)
	srv.AddFolder("y20", "ms20", "MS", 0)
	srv.AddFolder("nd20", "c-nd20", "nd_m_2020", 1)
	srv.AddFile("c-nd20", "302", "nd20.txt", []byte("nd20"))
	srv.AddFolder("ms20", "c-ms20", "ms_c_2020", 1)
	srv.AddFile("c-ms20", "303", "ms20.txt", []byte("ms20"))
}

func TestManager_AvailableYears(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))

	years, err := m.AvailableYears(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2020}, years)

	years, err = m.AvailableYears(context.Background(), "ms")
	require.NoError(t, err)
	assert.Equal(t, []int{2020}, years)

	years, err = m.AvailableYears(context.Background(), "TX")
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestManager_AvailableStates(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))

	year := 2021
	states, err := m.AvailableStates(context.Background(), &year)
	require.NoError(t, err)
	assert.Equal(t, []string{"ND"}, states)

	states, err = m.AvailableStates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"MS", "ND"}, states)

	missing := 1990
	_, err = m.AvailableStates(context.Background(), &missing)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestManager_DownloadAllStates(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	out := t.TempDir()
	m, _ := newTestManager(t, testSettings(srv, out))

	report, err := m.DownloadAllStates(context.Background(), 2020)
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)
	assert.Equal(t, "MS", report.Targets[0].State)
	assert.Equal(t, "ND", report.Targets[1].State)
	assert.Equal(t, m.RunID(), report.RunID)
	assert.Equal(t, 2, report.Totals().Downloaded)
	assert.Empty(t, report.Errors())

	assert.FileExists(t, filepath.Join(out, "2020", "ND", "nd_m_2020", "nd20.txt"))
	assert.FileExists(t, filepath.Join(out, "2020", "MS", "ms_c_2020", "ms20.txt"))
}

func TestManager_DownloadAllYearsSkipsMissingState(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	m, rec := newTestManager(t, testSettings(srv, t.TempDir()))

	report, err := m.DownloadAllYears(context.Background(), "MS")
	require.NoError(t, err)
	require.Len(t, report.Targets, 1)
	assert.Equal(t, 2020, report.Targets[0].Year)
	assert.Empty(t, report.Errors())
	assert.Contains(t, rec.messages(LevelVerbose), "State MS not available for year 2021")
}

func TestManager_UnknownStateWarnsOnce(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	const warning = "Warning: ZZ is not a known state abbreviation"
	count := func(rec *recorder) int {
		n := 0
		for _, msg := range rec.messages(LevelWarning) {
			if msg == warning {
				n++
			}
		}
		return n
	}

	m, rec := newTestManager(t, testSettings(srv, t.TempDir()))
	report, err := m.DownloadAllYears(context.Background(), "zz")
	require.NoError(t, err)
	assert.Empty(t, report.Targets)
	assert.Equal(t, 1, count(rec))

	m, rec = newTestManager(t, testSettings(srv, t.TempDir()))
	years, err := m.AvailableYears(context.Background(), "zz")
	require.NoError(t, err)
	assert.Empty(t, years)
	assert.Equal(t, 1, count(rec))

	m, rec = newTestManager(t, testSettings(srv, t.TempDir()))
	_, err = m.DownloadStateYear(context.Background(), 2021, "zz")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 1, count(rec))

	m, rec = newTestManager(t, testSettings(srv, t.TempDir()))
	_, err = m.DownloadAllYears(context.Background(), "MS")
	require.NoError(t, err)
	assert.Zero(t, count(rec))
}

func TestManager_BulkRunContinuesPastFailures(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)
	// Listing the MS 2020 composite fails; ND 2020 must still be downloaded.
	srv.AddFolder("ms20", "broken", "ms_n_2020", 1)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))

	report, err := m.DownloadAllStates(context.Background(), 2020)
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)

	errs := report.Errors()
	require.Len(t, errs, 1)
	var terr *TargetError
	require.ErrorAs(t, errs[0], &terr)
	assert.Equal(t, "MS", terr.State)
	assert.Equal(t, StageDownloading, terr.Stage)
	assert.Equal(t, StageDone, report.Targets[0].Stage)

	assert.ElementsMatch(t, []string{"302", "303"}, srv.Downloads())
}

func TestManager_DownloadDispatch(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))
	ctx := context.Background()

	year := 2021
	report, err := m.Download(ctx, &year, "nd")
	require.NoError(t, err)
	require.Len(t, report.Targets, 1)
	assert.Equal(t, 2021, report.Targets[0].Year)

	report, err = m.Download(ctx, nil, "")
	require.NoError(t, err)
	require.Len(t, report.Targets, 3)
	assert.Equal(t, 2021, report.Targets[0].Year)
	assert.Equal(t, 1, report.Totals().Skipped)
	assert.Equal(t, 2, report.Totals().Downloaded)

	year = 1990
	report, err = m.Download(ctx, &year, "ND")
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.Len(t, report.Targets, 1)
}

func TestManager_CancelledContext(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	seedTwoYears(srv)

	m, _ := newTestManager(t, testSettings(srv, t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target, err := m.DownloadStateYear(ctx, 2021, "ND")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageAborted, target.Stage)

	_, err = m.DownloadEverything(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, srv.Downloads())
}

func TestFolderDownloader_StopsAtDeclaredCount(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.PageSize = 1
	srv.AddFile("c1", "1", "a.txt", []byte("a"))
	srv.AddFile("c1", "2", "b.txt", []byte("b"))
	srv.AddFile("c1", "3", "c.txt", []byte("c"))

	settings := testSettings(srv, "")
	client := httpclient.NewClient(settings.ToHTTPOptions(), zerolog.Nop())
	endpoints := settings.ToEndpoints()
	d := NewFolderDownloader(box.NewHTTPSource(client, endpoints, zerolog.Nop()), client, endpoints, zerolog.Nop())

	var events []FileEvent
	d.OnFile = func(e FileEvent) { events = append(events, e) }

	folder := model.Folder{ID: "c1", Name: "composite", FilesCount: 2}
	report, err := d.DownloadFolder(context.Background(), folder, t.TempDir(), Policy{AutoExtract: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Downloaded)
	assert.Equal(t, int64(2), report.Bytes)
	assert.Equal(t, []int{1, 2}, srv.ListingPages("c1"))
	assert.Equal(t, []string{"1", "2"}, srv.Downloads())
	require.Len(t, events, 2)
	assert.Equal(t, model.OutcomeDownloaded, events[0].Outcome)
}

func TestFolderDownloader_StopsAtPageWithoutFiles(t *testing.T) {
	srv := boxtest.NewServer()
	defer srv.Close()
	srv.PageSize = 1
	srv.AddFolder("c1", "sub", "extras", 0)
	srv.AddFile("c1", "1", "a.txt", []byte("a"))

	settings := testSettings(srv, "")
	client := httpclient.NewClient(settings.ToHTTPOptions(), zerolog.Nop())
	endpoints := settings.ToEndpoints()

	var logs bytes.Buffer
	d := NewFolderDownloader(box.NewHTTPSource(client, endpoints, zerolog.Nop()), client, endpoints, zerolog.New(&logs))

	folder := model.Folder{ID: "c1", Name: "composite", FilesCount: 5}
	report, err := d.DownloadFolder(context.Background(), folder, t.TempDir(), Policy{})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, srv.ListingPages("c1"))
	assert.Empty(t, srv.Downloads())
	assert.Equal(t, 0, report.Downloaded)
	assert.Empty(t, report.Failed)
	assert.Contains(t, logs.String(), "listing ended before the declared file count")
	assert.Contains(t, logs.String(), `"expected":5`)
	assert.Contains(t, logs.String(), `"processed":0`)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "composites resolved", StageCompositesResolved.String())
	assert.Equal(t, "aborted", StageAborted.String())
	assert.Equal(t, "unknown", Stage(42).String())

	err := &TargetError{Year: 2021, State: "MS", Stage: StageYearResolved, Err: model.ErrNotFound}
	assert.Contains(t, err.Error(), "2021/MS (at year resolved)")
}
