package reaper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/filestore"
	"fanfan-translator/pkg/language"
	"fanfan-translator/pkg/task"
	"fanfan-translator/pkg/taskname"
	"fanfan-translator/services/group"
	"fanfan-translator/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var now = time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)

type recordingLeaver struct {
	left []string
	fail map[string]bool
}

func (l *recordingLeaver) LeaveGroup(ctx context.Context, groupID string) error {
	l.left = append(l.left, groupID)
	if l.fail[groupID] {
		return errors.New("line api down")
	}
	return nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

var _ task.Enqueuer = (*recordingEnqueuer)(nil)

func newGroups(t *testing.T) *group.Service {
	t.Helper()
	db := testutil.NewTestDB(t, group.Models()...)
	store, err := filestore.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	table, err := language.NewTable(config.DefaultLanguageTable)
	require.NoError(t, err)

	svc, err := group.NewService(group.Options{
		Repository:       group.NewRepository(db),
		Mirror:           group.NewFileMirror(store),
		Languages:        table,
		DefaultLanguages: []string{"zh-TW"},
		Clock:            func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func seed(t *testing.T, groups *group.Service, id string, idle time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, groups.SetLanguages(ctx, id, []string{"en", "ja"}))
	require.NoError(t, groups.TouchActivity(ctx, id, now.Add(-idle)))
}

func TestRunReapsOnlyGroupsPastThreshold(t *testing.T) {
	groups := newGroups(t)
	seed(t, groups, "G21", 21*24*time.Hour)
	seed(t, groups, "G19", 19*24*time.Hour)

	leaver := &recordingLeaver{}
	r := New(Options{Groups: groups, Leaver: leaver, InactiveDays: 20})

	report, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Report{Scanned: 1, Reaped: 1}, report)
	require.Equal(t, []string{"G21"}, leaver.left)

	ctx := context.Background()
	require.Equal(t, []string{"zh-TW"}, groups.GetLanguages(ctx, "G21"))
	require.Equal(t, []string{"en", "ja"}, groups.GetLanguages(ctx, "G19"))

	left, err := groups.ListInactive(ctx, now)
	require.NoError(t, err)
	require.Equal(t, []string{"G19"}, left)
}

func TestRunContinuesWhenLeaveFails(t *testing.T) {
	groups := newGroups(t)
	seed(t, groups, "GA", 30*24*time.Hour)
	seed(t, groups, "GB", 40*24*time.Hour)

	leaver := &recordingLeaver{fail: map[string]bool{"GA": true}}
	r := New(Options{Groups: groups, Leaver: leaver})

	report, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, report.Scanned)
	require.Equal(t, 2, report.Reaped)
	require.Equal(t, 1, report.LeaveFailures)
	require.Zero(t, report.PurgeFailures)
}

type failingGroups struct {
	ids []string
}

func (f failingGroups) ListInactive(ctx context.Context, before time.Time) ([]string, error) {
	return f.ids, nil
}

func (f failingGroups) Purge(ctx context.Context, groupID string) error {
	if groupID == "bad" {
		return errors.New("disk full")
	}
	return nil
}

func TestRunSkipsPurgeFailures(t *testing.T) {
	r := New(Options{Groups: failingGroups{ids: []string{"bad", "good"}}})

	report, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Report{Scanned: 2, Reaped: 1, PurgeFailures: 1}, report)

	require.Error(t, r.ReapGroup(context.Background(), "bad"))
	require.NoError(t, r.ReapGroup(context.Background(), "good"))
}

func TestDefaultThreshold(t *testing.T) {
	r := New(Options{Groups: failingGroups{}})
	require.Equal(t, 20*24*time.Hour, r.Threshold())
}

func TestEnqueueFansOutTasks(t *testing.T) {
	groups := newGroups(t)
	seed(t, groups, "G1", 25*24*time.Hour)
	seed(t, groups, "G2", 30*24*time.Hour)

	enq := &recordingEnqueuer{}
	r := New(Options{Groups: groups, Enqueuer: enq})

	report, err := r.Enqueue(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, report.Scanned)
	require.Equal(t, 2, report.Enqueued)
	require.Len(t, enq.tasks, 2)
	require.Equal(t, taskname.GroupReap, enq.tasks[0].Type())

	// Handling the queued task reaps the group.
	leaver := &recordingLeaver{}
	worker := New(Options{Groups: groups, Leaver: leaver})
	require.NoError(t, worker.HandleReapTask(context.Background(), enq.tasks[0]))
	require.Len(t, leaver.left, 1)
}

func TestHandleReapTaskRejectsBadPayload(t *testing.T) {
	r := New(Options{Groups: failingGroups{}})
	err := r.HandleReapTask(context.Background(), asynq.NewTask(taskname.GroupReap, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = r.HandleReapTask(context.Background(), asynq.NewTask(taskname.GroupReap, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingCleaner struct {
	forgot []string
	err    error
}

func (c *recordingCleaner) ForgetGroup(ctx context.Context, groupID string) error {
	c.forgot = append(c.forgot, groupID)
	return c.err
}

func TestRunCleansUpReapedGroups(t *testing.T) {
	groups := newGroups(t)
	seed(t, groups, "G21", 21*24*time.Hour)
	seed(t, groups, "G19", 19*24*time.Hour)

	ok := &recordingCleaner{}
	broken := &recordingCleaner{err: errors.New("cache gone")}
	r := New(Options{Groups: groups, Cleaners: []Cleaner{broken, ok}})

	report, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Report{Scanned: 1, Reaped: 1, CleanupFailures: 1}, report)
	require.Equal(t, []string{"G21"}, ok.forgot)
	require.Equal(t, []string{"G21"}, broken.forgot)
}

func TestPurgeFailureSkipsCleanup(t *testing.T) {
	cleaner := &recordingCleaner{}
	r := New(Options{Groups: failingGroups{}, Cleaners: []Cleaner{cleaner}})

	require.Error(t, r.ReapGroup(context.Background(), "bad"))
	require.Empty(t, cleaner.forgot)

	require.NoError(t, r.ReapGroup(context.Background(), "good"))
	require.Equal(t, []string{"good"}, cleaner.forgot)
}
