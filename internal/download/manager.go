package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/handiism/naip-downloader/internal/box"
	"github.com/handiism/naip-downloader/internal/config"
	"github.com/handiism/naip-downloader/internal/http"
	"github.com/handiism/naip-downloader/internal/model"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Progress is a snapshot of the running counters.
type Progress struct {
	FilesDone  int32
	FilesTotal int32

	// BytesReceived includes the bytes of the file currently downloading.
	BytesReceived int64

	CurrentFile    string
	CurrentWritten int64
	CurrentTotal   int64 // -1 when the server sent no length
}

// Manager coordinates NAIP downloads: it resolves (year, state) targets and
// downloads their composite folders one after another.
type Manager struct {
	settings  *config.Settings
	filter    model.FilterMode
	policy    Policy
	navigator *box.Navigator
	folders   *FolderDownloader
	logger    zerolog.Logger
	runID     string

	totalFiles     int32
	processedFiles int32
	receivedBytes  int64

	currentFile    string
	currentWritten int64
	currentTotal   int64

	onProgress func(ProgressEvent)
	mu         sync.RWMutex
}

// NewManager creates a new download Manager from settings.
//
// Returns a *model.ValidationError when the composite filters conflict.
func NewManager(settings *config.Settings, logger zerolog.Logger, onProgress func(ProgressEvent)) (*Manager, error) {
	filter, err := settings.FilterMode()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	client := http.NewClient(settings.ToHTTPOptions(), logger)
	endpoints := settings.ToEndpoints()

	source, err := box.NewCachedSource(box.NewHTTPSource(client, endpoints, logger), settings.Download.ListingCacheSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		settings: settings,
		filter:   filter,
		policy: Policy{
			Overwrite:   settings.Download.Overwrite,
			AutoExtract: settings.Download.Unzip,
		},
		navigator:  box.NewNavigator(source, endpoints.RootFolderID, logger),
		folders:    NewFolderDownloader(source, client, endpoints, logger),
		logger:     logger.With().Str("component", "manager").Logger(),
		runID:      runID,
		onProgress: onProgress,
	}
	m.folders.OnFile = m.fileDone
	m.folders.OnBytes = m.fileProgress

	return m, nil
}

// RunID returns the identifier attached to every log record of this manager.
func (m *Manager) RunID() string {
	return m.runID
}

// Download dispatches to the operation matching the given filters:
// both set downloads one target, a nil year downloads every year of the
// state, an empty state downloads every state of the year, and neither
// downloads everything.
func (m *Manager) Download(ctx context.Context, year *int, state string) (*RunReport, error) {
	switch {
	case year == nil && state == "":
		return m.DownloadEverything(ctx)
	case year == nil:
		return m.DownloadAllYears(ctx, state)
	case state == "":
		return m.DownloadAllStates(ctx, *year)
	default:
		report := m.newRunReport()
		target, err := m.DownloadStateYear(ctx, *year, state)
		report.add(target)
		return report, err
	}
}

// DownloadStateYear downloads the selected composites of one state for one year.
//
// Any error aborts the target and is returned as a *TargetError carrying
// the stage that was reached. File-level failures do not abort: they are
// listed in the composite reports.
func (m *Manager) DownloadStateYear(ctx context.Context, year int, state string) (*TargetReport, error) {
	state = model.NormalizeState(state)
	m.checkState(state)
	return m.downloadStateYear(ctx, year, state)
}

// checkState warns once about a state code outside the known list.
func (m *Manager) checkState(state string) {
	if model.IsKnownState(state) {
		return
	}
	m.logger.Warn().Str("state", state).Msg("not a known state code, trying anyway")
	m.progress(ProgressEvent{Message: fmt.Sprintf("Warning: %s is not a known state abbreviation", state), Level: LevelWarning})
}

// downloadStateYear expects state to be normalized.
func (m *Manager) downloadStateYear(ctx context.Context, year int, state string) (*TargetReport, error) {
	target := &TargetReport{Year: year, State: state, Stage: StageStart}
	log := m.logger.With().Int("year", year).Str("state", state).Logger()

	yearFolder, err := m.navigator.ResolveYear(ctx, year)
	if err != nil {
		return target, m.abort(target, err)
	}
	target.Stage = StageYearResolved

	stateFolder, err := m.navigator.ResolveState(ctx, yearFolder, state)
	if err != nil {
		return target, m.abort(target, err)
	}
	target.Stage = StageStateResolved

	composites, err := m.navigator.ResolveComposites(ctx, stateFolder, state, m.filter)
	if err != nil {
		return target, m.abort(target, err)
	}
	target.Stage = StageCompositesResolved

	if len(composites) == 0 {
		log.Info().Str("filter", m.filter.String()).Msg("no composite folders")
		m.progress(ProgressEvent{Message: fmt.Sprintf("No composite folders found for %s in %d", state, year), Level: LevelWarning})
		target.Stage = StageDone
		return target, nil
	}

	target.Stage = StageDownloading
	var errs []error
	for _, composite := range composites {
		atomic.AddInt32(&m.totalFiles, int32(composite.FilesCount))
		dir := model.CompositeDir(m.settings.Download.OutputDir, year, state, composite)

		m.progress(ProgressEvent{Message: fmt.Sprintf("Downloading %s %d %s (%d files)", state, year, composite.Name, composite.FilesCount), Level: LevelInfo})
		log.Info().Str("composite", composite.Name).Int("files", composite.FilesCount).Str("dir", dir).Msg("downloading composite")

		report, err := m.folders.DownloadFolder(ctx, composite, dir, m.policy)
		target.Composites = append(target.Composites, report)
		m.compositeDone(report)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return target, m.abort(target, ctxErr)
			}
			log.Error().Err(err).Str("composite", composite.Name).Msg("listing composite failed")
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading files from %s: %v", composite.Name, err), Level: LevelError})
			errs = append(errs, fmt.Errorf("%s: %w", composite.Name, err))
		}
	}

	target.Stage = StageDone
	if len(errs) > 0 {
		target.Err = &TargetError{Year: year, State: state, Stage: StageDownloading, Err: errors.Join(errs...)}
		return target, target.Err
	}
	return target, nil
}

// DownloadAllStates downloads every known state published for year.
//
// Targets are processed in alphabetical order. A failing target is logged
// and the loop moves on; only a failure to list the year or a cancelled ctx
// ends the operation early.
func (m *Manager) DownloadAllStates(ctx context.Context, year int) (*RunReport, error) {
	report := m.newRunReport()
	err := m.downloadYear(ctx, year, report)
	return report, err
}

// DownloadAllYears downloads state for every published year, most recent first.
// Years in which the state was not flown are skipped.
func (m *Manager) DownloadAllYears(ctx context.Context, state string) (*RunReport, error) {
	state = model.NormalizeState(state)
	m.checkState(state)
	report := m.newRunReport()

	years, err := m.yearFolders(ctx)
	if err != nil {
		return report, err
	}
	if len(years) == 0 {
		m.progress(ProgressEvent{Message: "No years found", Level: LevelWarning})
		return report, nil
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d years: %s", len(years), joinYears(years)), Level: LevelInfo})

	for _, y := range years {
		target, err := m.downloadStateYear(ctx, y.year, state)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.add(target)
				return report, ctxErr
			}
			if target.NotFound() {
				m.progress(ProgressEvent{Message: fmt.Sprintf("State %s not available for year %d", state, y.year), Level: LevelVerbose})
				continue
			}
			m.targetFailed(err)
		}
		report.add(target)
	}
	return report, nil
}

// DownloadEverything downloads every known state of every year.
func (m *Manager) DownloadEverything(ctx context.Context) (*RunReport, error) {
	report := m.newRunReport()

	years, err := m.yearFolders(ctx)
	if err != nil {
		return report, err
	}
	if len(years) == 0 {
		m.progress(ProgressEvent{Message: "No years found", Level: LevelWarning})
		return report, nil
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d years: %s", len(years), joinYears(years)), Level: LevelInfo})

	for _, y := range years {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Processing year %d", y.year), Level: LevelInfo})
		if err := m.downloadYear(ctx, y.year, report); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			m.logger.Error().Err(err).Int("year", y.year).Msg("processing year failed")
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error processing year %d: %v", y.year, err), Level: LevelError})
		}
	}
	return report, nil
}

// AvailableYears returns the published years, most recent first. With a
// state, only the years whose listing contains that state are returned;
// this lists every year folder.
func (m *Manager) AvailableYears(ctx context.Context, state string) ([]int, error) {
	years, err := m.yearFolders(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]int, 0, len(years))
	if state == "" {
		for _, y := range years {
			result = append(result, y.year)
		}
		return result, nil
	}

	state = model.NormalizeState(state)
	m.checkState(state)
	for _, y := range years {
		states, err := m.navigator.States(ctx, y.folder)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.logger.Warn().Err(err).Int("year", y.year).Msg("listing states failed, skipping year")
			continue
		}
		for _, s := range states {
			if strings.EqualFold(s.Name, state) {
				result = append(result, y.year)
				break
			}
		}
	}
	return result, nil
}

// AvailableStates returns the known state codes published for year, sorted.
// With a nil year, the union over every year is returned.
func (m *Manager) AvailableStates(ctx context.Context, year *int) ([]string, error) {
	if year != nil {
		yearFolder, err := m.navigator.ResolveYear(ctx, *year)
		if err != nil {
			return nil, err
		}
		folders, err := m.navigator.States(ctx, yearFolder)
		if err != nil {
			return nil, err
		}
		return knownStates(folders), nil
	}

	years, err := m.yearFolders(ctx)
	if err != nil {
		return nil, err
	}

	var all []model.Folder
	for _, y := range years {
		folders, err := m.navigator.States(ctx, y.folder)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.logger.Warn().Err(err).Int("year", y.year).Msg("listing states failed, skipping year")
			continue
		}
		all = append(all, folders...)
	}
	return knownStates(all), nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() Progress {
	m.mu.RLock()
	file, written, total := m.currentFile, m.currentWritten, m.currentTotal
	m.mu.RUnlock()

	return Progress{
		FilesDone:      atomic.LoadInt32(&m.processedFiles),
		FilesTotal:     atomic.LoadInt32(&m.totalFiles),
		BytesReceived:  atomic.LoadInt64(&m.receivedBytes) + written,
		CurrentFile:    file,
		CurrentWritten: written,
		CurrentTotal:   total,
	}
}

func (m *Manager) downloadYear(ctx context.Context, year int, report *RunReport) error {
	m.progress(ProgressEvent{Message: fmt.Sprintf("Getting available states for year %d", year), Level: LevelVerbose})
	states, err := m.AvailableStates(ctx, &year)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("No states found for year %d", year), Level: LevelWarning})
		return nil
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d states for year %d: %s", len(states), year, strings.Join(states, ", ")), Level: LevelInfo})

	for _, state := range states {
		target, err := m.downloadStateYear(ctx, year, state)
		report.add(target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.targetFailed(err)
		}
	}
	return nil
}

type yearFolder struct {
	year   int
	folder model.Folder
}

// yearFolders lists the year folders sorted most recent first.
func (m *Manager) yearFolders(ctx context.Context) ([]yearFolder, error) {
	folders, err := m.navigator.Years(ctx)
	if err != nil {
		return nil, err
	}

	years := make([]yearFolder, 0, len(folders))
	for _, f := range folders {
		y, err := strconv.Atoi(f.Name)
		if err != nil {
			continue
		}
		years = append(years, yearFolder{year: y, folder: f})
	}
	sort.Slice(years, func(i, j int) bool { return years[i].year > years[j].year })
	return years, nil
}

func (m *Manager) newRunReport() *RunReport {
	return &RunReport{RunID: m.runID}
}

// abort records err on target and moves it to StageAborted.
func (m *Manager) abort(target *TargetReport, err error) error {
	target.Err = &TargetError{Year: target.Year, State: target.State, Stage: target.Stage, Err: err}
	target.Stage = StageAborted

	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		m.logger.Info().Int("year", target.Year).Str("state", target.State).Str("kind", nf.Kind).Msg("target not published")
		m.progress(ProgressEvent{Message: notFoundMessage(nf, target), Level: LevelWarning})
	} else {
		m.logger.Error().Err(err).Int("year", target.Year).Str("state", target.State).Msg("target aborted")
	}
	return target.Err
}

func (m *Manager) targetFailed(err error) {
	m.logger.Error().Err(err).Msg("target failed, continuing")
	m.progress(ProgressEvent{Message: fmt.Sprintf("Error: %v", err), Level: LevelError})
}

func (m *Manager) compositeDone(report *model.DownloadReport) {
	for _, w := range report.Warnings {
		m.progress(ProgressEvent{Message: "Warning: " + w, Level: LevelWarning})
	}

	msg := fmt.Sprintf("Finished %s: %d downloaded (%s), %d skipped, %d failed",
		report.Folder.Name, report.Downloaded, humanize.Bytes(uint64(report.Bytes)), report.Skipped, report.FailedCount())
	if report.FailedCount() > 0 {
		m.progress(ProgressEvent{Message: msg, Level: LevelWarning})
	} else {
		m.progress(ProgressEvent{Message: msg, Level: LevelSuccess})
	}
}

func (m *Manager) fileDone(event FileEvent) {
	atomic.AddInt32(&m.processedFiles, 1)
	atomic.AddInt64(&m.receivedBytes, event.Bytes)

	m.mu.Lock()
	m.currentFile, m.currentWritten, m.currentTotal = "", 0, 0
	m.mu.Unlock()

	switch event.Outcome {
	case model.OutcomeSkipped:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", event.Target.Name), Level: LevelVerbose})
	case model.OutcomeFailed:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", event.Target.Name, event.Err), Level: LevelError})
	default:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s (%s)", event.Target.Name, humanize.Bytes(uint64(event.Bytes))), Level: LevelVerbose})
	}
}

func (m *Manager) fileProgress(target model.DownloadTarget, written, total int64) {
	m.mu.Lock()
	m.currentFile, m.currentWritten, m.currentTotal = target.Name, written, total
	m.mu.Unlock()
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

func notFoundMessage(nf *model.NotFoundError, target *TargetReport) string {
	switch nf.Kind {
	case "year":
		return fmt.Sprintf("No folder found for year %d", target.Year)
	case "state":
		return fmt.Sprintf("No folder found for state %s in year %d", target.State, target.Year)
	default:
		return nf.Error()
	}
}

// knownStates normalizes folder names and keeps the 50 state codes, sorted
// and without duplicates.
func knownStates(folders []model.Folder) []string {
	seen := make(map[string]bool)
	states := make([]string, 0, len(folders))
	for _, f := range folders {
		code := model.NormalizeState(f.Name)
		if !model.IsKnownState(code) || seen[code] {
			continue
		}
		seen[code] = true
		states = append(states, code)
	}
	sort.Strings(states)
	return states
}

func joinYears(years []yearFolder) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y.year)
	}
	return strings.Join(parts, ", ")
}
